// Package toolerr defines the structured error shape shared by every tool
// result and the stable machine-readable codes the core emits.
package toolerr

// Error is the structured failure carried in a tool result's "error" field.
// Presence of a non-nil Error defines failure for hook and transcript
// purposes; the core never raises exceptions for a tool failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Stable error codes, per the external interface contract.
const (
	CodePathOutOfScope   = "path_out_of_scope"
	CodeReadError        = "read_error"
	CodeWriteError       = "write_error"
	CodeInvalidPatch     = "invalid_patch"
	CodeHunkFailed       = "hunk_failed"
	CodePermissionDenied = "permission_denied"
	CodeHookBlocked      = "hook_blocked"
	CodeUnknownTool      = "unknown_tool"
	CodeMCPError         = "mcp_error"
	CodeMissingName      = "missing_name"
	CodeActivationFailed = "activation_failed"
	CodeMissingAgent     = "missing_agent"
	CodeAgentNotFound    = "agent_not_found"
	CodeSubagentError    = "subagent_error"
	CodeToolNotAllowed   = "tool_not_allowed"
	CodeInvalidArguments = "invalid_arguments"
)

// Result is the generic envelope a ToolFn returns. Exactly one of the
// success fields or Err is populated; json.Marshal emits only the side in
// use because Result is typically wrapped by the caller, not marshalled
// directly — dispatch serializes the concrete success struct itself, or
// this envelope when it only has an error.
type Result struct {
	Err *Error `json:"error,omitempty"`
}

// Failed is a convenience for tools that have nothing but an error to report.
func Failed(code, message string) Result {
	return Result{Err: New(code, message)}
}
