package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) (*Transcript, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.ndjson")
	tr, err := Open(path, "sess-1", "/work")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tr.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	t.Cleanup(func() { tr.Close() })
	return tr, path
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		out = append(out, m)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestEmitWritesEnvelope(t *testing.T) {
	tr, path := openTest(t)
	if err := tr.UserMessage("hello"); err != nil {
		t.Fatalf("UserMessage: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	ev := lines[0]
	if ev["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", ev["session_id"])
	}
	if ev["cwd"] != "/work" {
		t.Errorf("cwd = %v", ev["cwd"])
	}
	if ev["type"] != "user_message" {
		t.Errorf("type = %v", ev["type"])
	}
	details, ok := ev["details"].(map[string]any)
	if !ok {
		t.Fatalf("details missing or wrong type: %v", ev["details"])
	}
	if details["text"] != "hello" {
		t.Errorf("text = %v", details["text"])
	}
}

func TestEmitAppendsAcrossCalls(t *testing.T) {
	tr, path := openTest(t)
	if err := tr.UserMessage("first"); err != nil {
		t.Fatal(err)
	}
	if err := tr.AssistantMessage("second", nil); err != nil {
		t.Fatal(err)
	}
	if err := tr.PolicyDecision("Bash", "ask", "no matching rule"); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0]["type"] != "user_message" {
		t.Errorf("line 0 type = %v", lines[0]["type"])
	}
	if lines[1]["type"] != "assistant_message" {
		t.Errorf("line 1 type = %v", lines[1]["type"])
	}
	if lines[2]["type"] != "policy_decision" {
		t.Errorf("line 2 type = %v", lines[2]["type"])
	}
}

func TestReopenAppendsRatherThanTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.ndjson")
	tr1, err := Open(path, "sess-1", "/work")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr1.UserMessage("first session"); err != nil {
		t.Fatal(err)
	}
	tr1.Close()

	tr2, err := Open(path, "sess-1", "/work")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr2.UserMessage("second open"); err != nil {
		t.Fatal(err)
	}
	tr2.Close()

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines across reopen, got %d", len(lines))
	}
}

func TestMCPServerDiedIncludesExitCode(t *testing.T) {
	tr, path := openTest(t)
	if err := tr.MCPServerDied("files", 1); err != nil {
		t.Fatal(err)
	}
	lines := readLines(t, path)
	details := lines[0]["details"].(map[string]any)
	if details["server"] != "files" {
		t.Errorf("server = %v", details["server"])
	}
	if details["exit_code"].(float64) != 1 {
		t.Errorf("exit_code = %v", details["exit_code"])
	}
}

func TestToolResultOmitsResultWhenErrored(t *testing.T) {
	tr, path := openTest(t)
	if err := tr.ToolResult("call-1", "Bash", nil, "command timed out"); err != nil {
		t.Fatal(err)
	}
	lines := readLines(t, path)
	details := lines[0]["details"].(map[string]any)
	if details["error"] != "command timed out" {
		t.Errorf("error = %v", details["error"])
	}
	if _, present := details["result"]; present {
		t.Errorf("result should be absent on error, got %v", details["result"])
	}
}

func TestSubagentEventsCarrySubagentID(t *testing.T) {
	tr, path := openTest(t)
	if err := tr.SubagentStart("sub-1", "reviewer", "check this diff"); err != nil {
		t.Fatal(err)
	}
	if err := tr.SubagentToolCall("sub-1", "call-2", "Grep", map[string]any{"pattern": "TODO"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.SubagentEnd("sub-1", "looks fine"); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, path)
	for _, ev := range lines {
		details := ev["details"].(map[string]any)
		if details["subagent_id"] != "sub-1" {
			t.Errorf("subagent_id = %v on %v", details["subagent_id"], ev["type"])
		}
	}
}

func TestTokenUsageFields(t *testing.T) {
	tr, path := openTest(t)
	if err := tr.TokenUsage("claude-3-5-sonnet", 120, 45); err != nil {
		t.Fatal(err)
	}
	lines := readLines(t, path)
	details := lines[0]["details"].(map[string]any)
	if details["model"] != "claude-3-5-sonnet" {
		t.Errorf("model = %v", details["model"])
	}
	if details["input_tokens"].(float64) != 120 {
		t.Errorf("input_tokens = %v", details["input_tokens"])
	}
	if details["output_tokens"].(float64) != 45 {
		t.Errorf("output_tokens = %v", details["output_tokens"])
	}
}
