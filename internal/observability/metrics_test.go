package observability

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestToolExecutionCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_tool_executions_total",
			Help: "Test tool execution counter",
		},
		[]string{"tool_name", "status"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("Bash", "success").Inc()
	counter.WithLabelValues("Bash", "success").Inc()
	counter.WithLabelValues("Edit", "error").Inc()

	expected := `
		# HELP test_tool_executions_total Test tool execution counter
		# TYPE test_tool_executions_total counter
		test_tool_executions_total{status="error",tool_name="Edit"} 1
		test_tool_executions_total{status="success",tool_name="Bash"} 2
	`
	if err := testutil.CollectAndCompare(counter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestPolicyDecisionCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_policy_decisions_total",
			Help: "Test policy decision counter",
		},
		[]string{"tool_name", "decision"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("Bash", "ask").Inc()
	counter.WithLabelValues("Bash(curl:*)", "deny").Inc()

	expected := `
		# HELP test_policy_decisions_total Test policy decision counter
		# TYPE test_policy_decisions_total counter
		test_policy_decisions_total{decision="ask",tool_name="Bash"} 1
		test_policy_decisions_total{decision="deny",tool_name="Bash(curl:*)"} 1
	`
	if err := testutil.CollectAndCompare(counter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_llm_requests_total",
			Help: "Test LLM request counter",
		},
		[]string{"provider", "model", "status"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("anthropic", "claude-3-opus", "success").Inc()
	counter.WithLabelValues("openai", "gpt-4", "success").Inc()
	counter.WithLabelValues("anthropic", "claude-3-opus", "error").Inc()

	count := testutil.CollectAndCount(counter)
	if count < 1 {
		t.Error("Expected at least 1 LLM request recorded")
	}
}

func TestRecordError(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_errors_total",
			Help: "Test error counter",
		},
		[]string{"component", "error_type"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("agent", "timeout").Inc()
	counter.WithLabelValues("agent", "timeout").Inc()
	counter.WithLabelValues("mcp", "server_died").Inc()
	counter.WithLabelValues("tool", "execution_failed").Inc()

	count := testutil.CollectAndCount(counter)
	if count < 1 {
		t.Error("Expected at least 1 error recorded")
	}
}

func TestSessionLifecycle(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_active_sessions",
		Help: "Test active sessions",
	})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_session_duration_seconds",
		Help:    "Test session duration",
		Buckets: []float64{60, 300, 600},
	})
	registry.MustRegister(gauge, histogram)

	gauge.Inc()
	gauge.Inc()
	gauge.Dec()
	histogram.Observe(300.0)

	if testutil.ToFloat64(gauge) != 1 {
		t.Errorf("expected gauge at 1, got %v", testutil.ToFloat64(gauge))
	}
	if testutil.CollectAndCount(histogram) < 1 {
		t.Error("Expected session duration histogram to have observations")
	}
}

func TestHistogramBuckets(t *testing.T) {
	registry := prometheus.NewRegistry()
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_seconds",
			Help:    "Test duration histogram",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
		[]string{"operation"},
	)
	registry.MustRegister(histogram)

	durations := []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0}
	for _, duration := range durations {
		histogram.WithLabelValues("test").Observe(duration)
	}

	if testutil.CollectAndCount(histogram) < 1 {
		t.Error("Expected histogram to have observations across buckets")
	}
}

func TestConcurrentMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_concurrent_total",
			Help: "Test concurrent counter",
		},
		[]string{"label"},
	)
	registry.MustRegister(counter)

	var wg sync.WaitGroup
	iterations := 100
	for _, label := range []string{"a", "b"} {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				counter.WithLabelValues(label).Inc()
				time.Sleep(time.Microsecond)
			}
		}(label)
	}
	wg.Wait()

	if testutil.CollectAndCount(counter) < 1 {
		t.Error("Expected concurrent metric recording to work")
	}
}

// TestMetricsIntegration exercises the real Metrics type end to end
// against its own registry-registered instance; it must run once per
// process since NewMetrics registers with the default registry.
func TestMetricsIntegration(t *testing.T) {
	m := NewMetrics()

	m.RecordLLMRequest("anthropic", "claude-3-5-sonnet", "success", 1.2, 100, 50)
	m.RecordToolExecution("Bash", "success", 0.05)
	m.RecordPolicyDecision("Bash", "ask")
	m.RecordError("tool", "timeout")
	m.RecordLLMCost("anthropic", "claude-3-5-sonnet", 0.01)

	m.SessionStarted()
	m.SessionEnded(12.5, 4)

	if got := testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("anthropic", "claude-3-5-sonnet", "success")); got != 1 {
		t.Errorf("expected 1 LLM request recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("Bash", "success")); got != 1 {
		t.Errorf("expected 1 tool execution recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.PolicyDecisions.WithLabelValues("Bash", "ask")); got != 1 {
		t.Errorf("expected 1 policy decision recorded, got %v", got)
	}
}
