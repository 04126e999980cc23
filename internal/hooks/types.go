// Package hooks invokes out-of-process lifecycle commands at six points
// in the turn loop. Hooks are external programs, not in-process
// handlers: each descriptor names a command vector that is spawned, fed
// a JSON payload on stdin, and expected to emit a JSON response on
// stdout within its timeout.
package hooks

import (
	"regexp"
	"time"
)

// EventKind identifies one of the six lifecycle points a hook can bind to.
type EventKind string

const (
	PreToolUse       EventKind = "PreToolUse"
	PostToolUse      EventKind = "PostToolUse"
	UserPromptSubmit EventKind = "UserPromptSubmit"
	Stop             EventKind = "Stop"
	SubagentStop     EventKind = "SubagentStop"
	SessionStart     EventKind = "SessionStart"
)

// Descriptor configures one hook: which event it binds to, an optional
// matcher restricting it to tool names (PreToolUse/PostToolUse only), the
// command to run, and its timeout.
type Descriptor struct {
	Event   EventKind
	Matcher *regexp.Regexp
	Command []string
	Timeout time.Duration
}

// Matches reports whether this descriptor applies to the given tool name.
// A nil Matcher matches every tool; matching is irrelevant for event
// kinds other than PreToolUse/PostToolUse.
func (d Descriptor) Matches(toolName string) bool {
	if d.Matcher == nil {
		return true
	}
	return d.Matcher.MatchString(toolName)
}

// preToolUsePayload is what PreToolUse sends on stdin.
type preToolUsePayload struct {
	Event    EventKind      `json:"event"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// preToolUseResponse is what a PreToolUse hook may emit on stdout.
type preToolUseResponse struct {
	Proceed        bool           `json:"proceed"`
	RewrittenArgs  map[string]any `json:"rewritten_args,omitempty"`
}

// PreToolUseResult is the outcome the runner returns to the turn loop.
type PreToolUseResult struct {
	Proceed       bool
	RewrittenArgs map[string]any
}

// postToolUsePayload is what PostToolUse sends on stdin.
type postToolUsePayload struct {
	Event      EventKind      `json:"event"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// userPromptSubmitPayload is what UserPromptSubmit sends on stdin.
type userPromptSubmitPayload struct {
	Event EventKind `json:"event"`
	Text  string    `json:"text"`
}

// stopPayload is what Stop sends on stdin.
type stopPayload struct {
	Event             EventKind `json:"event"`
	Reason            string    `json:"reason"`
	LastAssistantText string    `json:"last_assistant_text,omitempty"`
}

// stopResponse is what an on_stop hook may emit on stdout.
type stopResponse struct {
	ForceContinue  bool   `json:"force_continue"`
	InjectedPrompt string `json:"injected_prompt,omitempty"`
}

// StopResult is the outcome the runner returns to the turn loop.
type StopResult struct {
	ForceContinue  bool
	InjectedPrompt string
}

// subagentStopPayload is what SubagentStop sends on stdin.
type subagentStopPayload struct {
	Event      EventKind `json:"event"`
	Agent      string    `json:"agent"`
	OK         bool      `json:"ok"`
	Text       string    `json:"text,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// sessionStartPayload is what SessionStart sends on stdin.
type sessionStartPayload struct {
	Event     EventKind `json:"event"`
	SessionID string    `json:"session_id"`
	Cwd       string    `json:"cwd"`
}
