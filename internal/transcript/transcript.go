package transcript

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// EventType namespaces the append-only transcript vocabulary. Names come
// straight from the turn-loop and MCP lifecycle this module drives, not
// a generic audit taxonomy.
type EventType string

const (
	EventUserMessage      EventType = "user_message"
	EventAssistantMessage EventType = "assistant_message"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventPolicyDecision   EventType = "policy_decision"
	EventMCPServerStart   EventType = "mcp_server_start"
	EventMCPServerStop    EventType = "mcp_server_stop"
	EventMCPServerDied    EventType = "mcp_server_died"
	EventMCPInitializeOK  EventType = "mcp_initialize_ok"
	EventMCPInitializeErr EventType = "mcp_initialize_err"
	EventMCPToolsList     EventType = "mcp_tools_list"
	EventMCPToolCall      EventType = "mcp_tool_call"
	EventMCPToolResult    EventType = "mcp_tool_result"
	EventSubagentStart    EventType = "subagent_start"
	EventSubagentEnd      EventType = "subagent_end"
	EventSubagentToolCall EventType = "subagent_tool_call"
	EventTokenUsage       EventType = "token_usage"
	EventSkillActivate    EventType = "skill_activate"
	EventPlanCreated      EventType = "plan_created"
)

// Event is the common envelope every transcript line carries. Details
// holds the event-specific payload; its shape is defined by whichever
// emit helper (below) constructed it, not by this struct.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	SessionID string         `json:"session_id"`
	Cwd       string         `json:"cwd"`
	Type      EventType      `json:"type"`
	Details   map[string]any `json:"details,omitempty"`
}

// Transcript is an append-only NDJSON writer: one json.Marshal plus a
// newline per event, under a plain mutex, to a file opened O_APPEND.
// Deliberately synchronous and unbuffered, not batched through a channel,
// because a transcript must be replayable from exactly what was durably
// written — durability beats throughput here.
type Transcript struct {
	mu        sync.Mutex
	file      *os.File
	sessionID string
	cwd       string
	now       func() time.Time
}

// Open creates or appends to the NDJSON file at path.
func Open(path, sessionID, cwd string) (*Transcript, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Transcript{file: f, sessionID: sessionID, cwd: cwd, now: time.Now}, nil
}

// Close closes the underlying file.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

// Emit writes one event line. details may be nil.
func (t *Transcript) Emit(typ EventType, details map[string]any) error {
	ev := Event{
		Timestamp: t.now(),
		SessionID: t.sessionID,
		Cwd:       t.cwd,
		Type:      typ,
		Details:   details,
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.file.Write(line)
	return err
}

// UserMessage records a user turn's input text.
func (t *Transcript) UserMessage(text string) error {
	return t.Emit(EventUserMessage, map[string]any{"text": text})
}

// AssistantMessage records an assistant reply, with any tool calls it
// requested (already serialized to the function-call schema).
func (t *Transcript) AssistantMessage(text string, toolCalls []map[string]any) error {
	return t.Emit(EventAssistantMessage, map[string]any{"text": text, "tool_calls": toolCalls})
}

// ToolCall records a built-in or MCP tool invocation request.
func (t *Transcript) ToolCall(toolCallID, name string, args map[string]any) error {
	return t.Emit(EventToolCall, map[string]any{
		"tool_call_id": toolCallID,
		"name":         name,
		"args":         args,
	})
}

// ToolResult records the outcome of a tool call.
func (t *Transcript) ToolResult(toolCallID, name string, result any, errMsg string) error {
	details := map[string]any{
		"tool_call_id": toolCallID,
		"name":         name,
	}
	if errMsg != "" {
		details["error"] = errMsg
	} else {
		details["result"] = result
	}
	return t.Emit(EventToolResult, details)
}

// PolicyDecision records a permission verdict for a tool invocation.
func (t *Transcript) PolicyDecision(toolName, decision, reason string) error {
	return t.Emit(EventPolicyDecision, map[string]any{
		"tool_name": toolName,
		"decision":  decision,
		"reason":    reason,
	})
}

// MCPServerStart records a server coming up.
func (t *Transcript) MCPServerStart(server string) error {
	return t.Emit(EventMCPServerStart, map[string]any{"server": server})
}

// MCPServerStop records a clean server shutdown.
func (t *Transcript) MCPServerStop(server string) error {
	return t.Emit(EventMCPServerStop, map[string]any{"server": server})
}

// MCPServerDied records an unexpected exit observed via try_wait.
func (t *Transcript) MCPServerDied(server string, exitCode int) error {
	return t.Emit(EventMCPServerDied, map[string]any{"server": server, "exit_code": exitCode})
}

// MCPInitializeOK records a successful initialize handshake.
func (t *Transcript) MCPInitializeOK(server string) error {
	return t.Emit(EventMCPInitializeOK, map[string]any{"server": server})
}

// MCPInitializeErr records a failed initialize handshake.
func (t *Transcript) MCPInitializeErr(server, errMsg string) error {
	return t.Emit(EventMCPInitializeErr, map[string]any{"server": server, "error": errMsg})
}

// MCPToolsList records the tool names one server advertised.
func (t *Transcript) MCPToolsList(server string, toolNames []string) error {
	return t.Emit(EventMCPToolsList, map[string]any{"server": server, "tools": toolNames})
}

// MCPToolCall records an outbound mcp.* tool invocation.
func (t *Transcript) MCPToolCall(fullName string, args map[string]any) error {
	return t.Emit(EventMCPToolCall, map[string]any{"name": fullName, "args": args})
}

// MCPToolResult records the response to an mcp.* tool invocation.
func (t *Transcript) MCPToolResult(fullName string, result any, errMsg string) error {
	details := map[string]any{"name": fullName}
	if errMsg != "" {
		details["error"] = errMsg
	} else {
		details["result"] = result
	}
	return t.Emit(EventMCPToolResult, details)
}

// SubagentStart records a Task-tool delegation beginning.
func (t *Transcript) SubagentStart(subagentID, agentType, prompt string) error {
	return t.Emit(EventSubagentStart, map[string]any{
		"subagent_id": subagentID,
		"agent_type":  agentType,
		"prompt":      prompt,
	})
}

// SubagentEnd records a Task-tool delegation completing.
func (t *Transcript) SubagentEnd(subagentID, result string) error {
	return t.Emit(EventSubagentEnd, map[string]any{
		"subagent_id": subagentID,
		"result":      result,
	})
}

// SubagentToolCall records a tool call made from inside a subagent turn
// loop, attributed back to its subagent_id.
func (t *Transcript) SubagentToolCall(subagentID, toolCallID, name string, args map[string]any) error {
	return t.Emit(EventSubagentToolCall, map[string]any{
		"subagent_id":  subagentID,
		"tool_call_id": toolCallID,
		"name":         name,
		"args":         args,
	})
}

// TokenUsage records per-turn token accounting for cost tracking.
func (t *Transcript) TokenUsage(model string, inputTokens, outputTokens int) error {
	return t.Emit(EventTokenUsage, map[string]any{
		"model":         model,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	})
}

// SkillActivate records a skill pack being loaded into context.
func (t *Transcript) SkillActivate(name string) error {
	return t.Emit(EventSkillActivate, map[string]any{"name": name})
}

// PlanCreated records a plan block the assistant produced while in plan
// mode.
func (t *Transcript) PlanCreated(planText string) error {
	return t.Emit(EventPlanCreated, map[string]any{"plan": planText})
}
