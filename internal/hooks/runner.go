package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"
)

// Runner holds the configured hook descriptors for one session and
// invokes them at the turn loop's lifecycle points.
type Runner struct {
	descriptors map[EventKind][]Descriptor
}

// NewRunner builds a Runner from a flat descriptor list, bucketed by
// event kind for dispatch.
func NewRunner(descriptors []Descriptor) *Runner {
	r := &Runner{descriptors: make(map[EventKind][]Descriptor)}
	for _, d := range descriptors {
		r.descriptors[d.Event] = append(r.descriptors[d.Event], d)
	}
	return r
}

// runOne spawns one hook's command, writes payload as JSON on stdin, and
// decodes the command's stdout into response. A timeout, non-zero exit,
// or unparseable response all count as a crash for the caller's purposes
// and leave response untouched (its zero value): a hook that times out or
// crashes must not change the default outcome.
func runOne(ctx context.Context, d Descriptor, payload any, response any) bool {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	if len(d.Command) == 0 {
		return false
	}
	cmd := exec.CommandContext(runCtx, d.Command[0], d.Command[1:]...)
	cmd.Stdin = bytes.NewReader(body)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return false
	}
	if response == nil {
		return true
	}
	if err := json.Unmarshal(stdout.Bytes(), response); err != nil {
		return false
	}
	return true
}

// PreToolUse runs every PreToolUse hook whose matcher matches toolName,
// in descriptor order. A hook may veto (proceed=false) or rewrite args;
// the first hook to veto stops the chain. A timed-out or crashed hook is
// treated as proceed=true with no rewrite, so it never blocks execution
// on its own.
func (r *Runner) PreToolUse(ctx context.Context, toolName string, args map[string]any) PreToolUseResult {
	result := PreToolUseResult{Proceed: true, RewrittenArgs: args}
	for _, d := range r.descriptors[PreToolUse] {
		if !d.Matches(toolName) {
			continue
		}
		payload := preToolUsePayload{Event: PreToolUse, ToolName: toolName, Args: result.RewrittenArgs}
		var resp preToolUseResponse
		resp.Proceed = true
		if !runOne(ctx, d, payload, &resp) {
			continue
		}
		if !resp.Proceed {
			return PreToolUseResult{Proceed: false, RewrittenArgs: result.RewrittenArgs}
		}
		if resp.RewrittenArgs != nil {
			result.RewrittenArgs = resp.RewrittenArgs
		}
	}
	return result
}

// PostToolUse runs every matching PostToolUse hook, observationally; no
// hook in this chain can alter the turn loop's state.
func (r *Runner) PostToolUse(ctx context.Context, toolName string, args map[string]any, result any, errMsg string, duration time.Duration) {
	for _, d := range r.descriptors[PostToolUse] {
		if !d.Matches(toolName) {
			continue
		}
		payload := postToolUsePayload{
			Event:      PostToolUse,
			ToolName:   toolName,
			Args:       args,
			Result:     result,
			Error:      errMsg,
			DurationMs: duration.Milliseconds(),
		}
		runOne(ctx, d, payload, nil)
	}
}

// UserPromptSubmit runs every UserPromptSubmit hook, observationally.
func (r *Runner) UserPromptSubmit(ctx context.Context, text string) {
	for _, d := range r.descriptors[UserPromptSubmit] {
		payload := userPromptSubmitPayload{Event: UserPromptSubmit, Text: text}
		runOne(ctx, d, payload, nil)
	}
}

// OnStop runs every Stop hook. The first hook to request force_continue
// wins; a timed-out or crashed hook defaults to force_continue=false with
// no injected prompt.
func (r *Runner) OnStop(ctx context.Context, reason, lastAssistantText string) StopResult {
	for _, d := range r.descriptors[Stop] {
		payload := stopPayload{Event: Stop, Reason: reason, LastAssistantText: lastAssistantText}
		var resp stopResponse
		if !runOne(ctx, d, payload, &resp) {
			continue
		}
		if resp.ForceContinue {
			return StopResult{ForceContinue: true, InjectedPrompt: resp.InjectedPrompt}
		}
	}
	return StopResult{}
}

// OnSubagentStop runs every SubagentStop hook, observationally.
func (r *Runner) OnSubagentStop(ctx context.Context, agent string, ok bool, text string, duration time.Duration) {
	for _, d := range r.descriptors[SubagentStop] {
		payload := subagentStopPayload{
			Event:      SubagentStop,
			Agent:      agent,
			OK:         ok,
			Text:       text,
			DurationMs: duration.Milliseconds(),
		}
		runOne(ctx, d, payload, nil)
	}
}

// OnSessionStart runs every SessionStart hook, observationally.
func (r *Runner) OnSessionStart(ctx context.Context, sessionID, cwd string) {
	for _, d := range r.descriptors[SessionStart] {
		payload := sessionStartPayload{Event: SessionStart, SessionID: sessionID, Cwd: cwd}
		runOne(ctx, d, payload, nil)
	}
}
