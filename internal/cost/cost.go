// Package cost is a pure token-cost aggregator: given a model name and a
// token count, it looks up pricing and returns the resulting USD cost. It
// does no I/O and holds no session state of its own — callers (internal/
// session) own accumulation across turns.
package cost

import (
	"fmt"
	"strings"
)

// ModelPricing is the cost per million tokens for one model.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Calculate returns the USD cost of the given token counts under this
// pricing.
func (p ModelPricing) Calculate(inputTokens, outputTokens int) float64 {
	in := float64(inputTokens) / 1_000_000 * p.InputPerMTok
	out := float64(outputTokens) / 1_000_000 * p.OutputPerMTok
	return in + out
}

// DefaultPricing is a conservative fallback applied to any model the
// table has no entry or prefix match for.
var DefaultPricing = ModelPricing{InputPerMTok: 1.00, OutputPerMTok: 3.00}

// DefaultTable is the built-in pricing table, embedded at startup rather
// than user-configurable.
var DefaultTable = map[string]ModelPricing{
	// OpenAI
	"gpt-4o":         {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":    {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4-turbo":    {InputPerMTok: 10.00, OutputPerMTok: 30.00},
	"gpt-3.5-turbo":  {InputPerMTok: 0.50, OutputPerMTok: 1.50},
	"o1":             {InputPerMTok: 15.00, OutputPerMTok: 60.00},
	"o1-mini":        {InputPerMTok: 3.00, OutputPerMTok: 12.00},
	"o1-preview":     {InputPerMTok: 15.00, OutputPerMTok: 60.00},

	// Anthropic
	"claude-3-5-sonnet-latest":   {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-sonnet-20241022": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-haiku-latest":    {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"claude-3-opus-latest":       {InputPerMTok: 15.00, OutputPerMTok: 75.00},

	// Local / free-tier backends
	"llama3":     {InputPerMTok: 0, OutputPerMTok: 0},
	"llama3:8b":  {InputPerMTok: 0, OutputPerMTok: 0},
	"codellama":  {InputPerMTok: 0, OutputPerMTok: 0},
}

// Lookup resolves a model name to pricing: exact match, else the first
// table entry that is a string prefix of the model name (so versioned
// names like "gpt-4o-2024-08-06" fall back to "gpt-4o"), else
// DefaultPricing. Map iteration order is undefined, so when a model name
// matches more than one prefix the particular match chosen is arbitrary;
// callers should prefer exact entries for models they care about pinning.
func Lookup(table map[string]ModelPricing, model string) ModelPricing {
	if p, ok := table[model]; ok {
		return p
	}
	for name, p := range table {
		if strings.HasPrefix(model, name) {
			return p
		}
	}
	return DefaultPricing
}

// OperationCost is the result of costing one LLM call.
type OperationCost struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// TotalTokens returns the combined input and output token count.
func (o OperationCost) TotalTokens() int {
	return o.InputTokens + o.OutputTokens
}

// RecordOperation deterministically computes the cost of one LLM
// operation against table. Pure function of its inputs; no I/O.
func RecordOperation(table map[string]ModelPricing, model string, inputTokens, outputTokens int) OperationCost {
	pricing := Lookup(table, model)
	return OperationCost{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      pricing.Calculate(inputTokens, outputTokens),
	}
}

// Stats is a monoid over token/cost/tool-use counts: zero value is the
// identity, Add/Merge combine field-wise. Used to accumulate per-turn and
// per-session totals, and to fold a subagent's costs into its parent
// turn.
type Stats struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	ToolUses     int
}

// Add folds one operation's token counts and cost into s, and increments
// ToolUses by the given count.
func (s Stats) Add(op OperationCost, toolUses int) Stats {
	return Stats{
		InputTokens:  s.InputTokens + op.InputTokens,
		OutputTokens: s.OutputTokens + op.OutputTokens,
		CostUSD:      s.CostUSD + op.CostUSD,
		ToolUses:     s.ToolUses + toolUses,
	}
}

// Merge combines two Stats field-wise, e.g. folding a subagent's totals
// into its parent's.
func (s Stats) Merge(other Stats) Stats {
	return Stats{
		InputTokens:  s.InputTokens + other.InputTokens,
		OutputTokens: s.OutputTokens + other.OutputTokens,
		CostUSD:      s.CostUSD + other.CostUSD,
		ToolUses:     s.ToolUses + other.ToolUses,
	}
}

// TotalTokens returns InputTokens + OutputTokens.
func (s Stats) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}

// FormatUSD renders a cost the way the stats line displays it: full cents
// above a dollar, four decimal places below one cent.
func FormatUSD(amount float64) string {
	if amount <= 0 {
		return "$0.00"
	}
	if amount < 0.01 {
		return fmt.Sprintf("$%.4f", amount)
	}
	if amount < 1.0 {
		return fmt.Sprintf("$%.3f", amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}

// FormatTokens renders a token count compactly ("1.5k", "2.3M").
func FormatTokens(tokens int) string {
	switch {
	case tokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	case tokens >= 1_000:
		return fmt.Sprintf("%.1fk", float64(tokens)/1_000)
	default:
		return fmt.Sprintf("%d", tokens)
	}
}
