package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jgarzik/yo/internal/cost"
	"github.com/jgarzik/yo/internal/dispatch"
	"github.com/jgarzik/yo/internal/hooks"
	"github.com/jgarzik/yo/internal/mcp"
	"github.com/jgarzik/yo/internal/observability"
	"github.com/jgarzik/yo/internal/plan"
	"github.com/jgarzik/yo/internal/policy"
	"github.com/jgarzik/yo/internal/toolerr"
	"github.com/jgarzik/yo/internal/transcript"
)

// DefaultMaxIterations is the turn loop's iteration cap K.
const DefaultMaxIterations = 12

// SkillActivation is the loop-local record of the one active skill pack,
// if any: its allowed_tools restriction and the instructions text folded
// into the effective system prompt.
type SkillActivation struct {
	Name         string
	Instructions string
	AllowedTools []string
}

// ActivateSkillFunc resolves a skill pack name to its activation record;
// wired by the session/config layer from internal/skills. Returning a nil
// pointer and an error signals activation_failed.
type ActivateSkillFunc func(name string) (*SkillActivation, error)

// ExternalToolsFunc returns the current aggregated external-tool catalog.
type ExternalToolsFunc func() []mcp.ToolDef

// Loop drives one session's turn-by-turn LLM/tool execution. A single
// Loop value is session-scoped: it owns the messages list, plan state,
// and accumulated stats for one REPL session. It is deliberately a plain
// owned value passed by pointer, not a process-global singleton, so
// independent sessions (e.g. in tests) never share state.
type Loop struct {
	Policy     *policy.Config
	Prompter   policy.Prompter
	Hooks      *hooks.Runner
	Dispatcher *dispatch.Dispatcher
	Transcript *transcript.Transcript // nil-safe: nil disables transcript writes
	Plan       *plan.State
	Provider   Provider
	Target     Target
	CostTable  CostTable

	MaxIterations int

	SessionID        string
	BaseSystemPrompt string
	PlanSystemPrompt string

	// SubagentID, when non-empty, marks this Loop as a subagent's nested
	// turn loop: tool calls are attributed to it via
	// Transcript.SubagentToolCall instead of the plain ToolCall event.
	SubagentID string

	ActivateSkill ActivateSkillFunc
	ExternalTools ExternalToolsFunc
	Subagents     map[string]*Spec

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	OnAssistantText func(text string)
	OnWarning       func(msg string)
	// OnToolDispatched fires after every tool call that reached the
	// dispatcher (i.e. was not blocked by a hook, policy, or the
	// allowed-tools gate), with the original arguments and any error
	// message. The subagent runtime uses this to accumulate
	// files_referenced/proposed_edits  without the
	// dispatcher itself knowing about that bookkeeping.
	OnToolDispatched func(name string, args map[string]any, errMsg string)
	// OnToolResult fires after every tool call regardless of where it was
	// resolved (allowed-tools gate, hook veto, policy denial, or a real
	// dispatch), so callers can observe "did any call fail" without caring
	// which stage produced the error (ok computation).
	OnToolResult func(name string, errMsg string)

	// AllowedTools, when non-nil, restricts which tool names this loop may
	// dispatch regardless of what the catalog offered the model — the
	// subagent runtime's allowed-tools restriction, checked ahead of
	// hooks and policy so a hook can never rewrite around it.
	AllowedTools []string
	// DenyTask unconditionally blocks the Task tool for this loop: Task
	// never appears in a subagent's effective tool catalog, and can never
	// be dispatched
	// even if a model hallucinates the call.
	DenyTask bool

	Messages    []Message
	Stats       cost.Stats
	activeSkill *SkillActivation
}

// NewLoop builds a Loop with its iteration cap defaulted and its
// dispatcher's meta handlers (Task, ActivateSkill, EnterPlanMode) wired to
// this loop's own methods.
func NewLoop(l *Loop) *Loop {
	if l.MaxIterations <= 0 {
		l.MaxIterations = DefaultMaxIterations
	}
	if l.Plan == nil {
		l.Plan = &plan.State{}
	}
	if l.Dispatcher != nil {
		l.Dispatcher.Task = l.dispatchTask
		l.Dispatcher.ActivateSkill = l.dispatchActivateSkill
		l.Dispatcher.EnterPlanMode = l.dispatchEnterPlanMode
	}
	return l
}

func (l *Loop) warn(msg string) {
	if l.OnWarning != nil {
		l.OnWarning(msg)
	}
}

func (l *Loop) say(text string) {
	if text == "" {
		return
	}
	if l.OnAssistantText != nil {
		l.OnAssistantText(text)
	}
}

// effectiveSystemPrompt composes the base prompt, the plan-mode prompt
// (while Planning), and active-skill instructions into one string.
func (l *Loop) effectiveSystemPrompt() string {
	s := l.BaseSystemPrompt
	if l.Plan.Phase == plan.Planning && l.PlanSystemPrompt != "" {
		s += "\n\n" + l.PlanSystemPrompt
	}
	if l.activeSkill != nil && l.activeSkill.Instructions != "" {
		s += "\n\n" + l.activeSkill.Instructions
	}
	return s
}

// catalog assembles this iteration's tool catalog.
func (l *Loop) catalog() []ToolSchema {
	var external []mcp.ToolDef
	if l.ExternalTools != nil {
		external = l.ExternalTools()
	}
	var allowed []string
	if l.activeSkill != nil {
		allowed = l.activeSkill.AllowedTools
	}
	return BuildCatalog(BuiltinSchemas(), externalSchemas(external), l.Plan.Phase, allowed)
}

// RunTurn runs the turn loop for one user prompt: appends it to the
// messages list, then iterates LLM calls and tool executions until the
// model stops calling tools or the iteration cap is hit. It returns the
// final assistant text and whether a stop hook requested continuation with
// an injected prompt.
func (l *Loop) RunTurn(ctx context.Context, prompt string) (finalText string, injectedPrompt string, forceContinue bool, err error) {
	l.Messages = append(l.Messages, Message{Role: RoleUser, Content: prompt})
	if l.Transcript != nil {
		_ = l.Transcript.UserMessage(prompt)
	}
	if l.Hooks != nil {
		l.Hooks.UserPromptSubmit(ctx, prompt)
	}

	var lastAssistantText string
	reason := "max_iterations"

	for i := 0; i < l.MaxIterations; i++ {
		system := l.effectiveSystemPrompt()
		tools := l.catalog()

		result, cerr := l.Provider.Complete(ctx, l.Target, system, l.Messages, tools)
		if cerr != nil {
			return lastAssistantText, "", false, fmt.Errorf("llm call: %w", cerr)
		}

		op := cost.RecordOperation(l.CostTable, l.Target.Model, result.Usage.InputTokens, result.Usage.OutputTokens)
		if l.Transcript != nil {
			_ = l.Transcript.TokenUsage(l.Target.Model, result.Usage.InputTokens, result.Usage.OutputTokens)
		}
		if l.Metrics != nil {
			l.Metrics.RecordLLMCost("", l.Target.Model, op.CostUSD)
		}

		if result.FinishReason == FinishLength {
			l.warn("assistant response was truncated (finish_reason=length)")
		}

		lastAssistantText = result.Text
		l.say(result.Text)

		if l.Plan.Phase == plan.Planning && result.Text != "" {
			if p, ok := plan.TryParse(result.Text); ok {
				l.Plan.Current = p
				l.Plan.Phase = plan.Review
				if l.Transcript != nil {
					_ = l.Transcript.PlanCreated(result.Text)
				}
			}
		}

		toolCallMaps := toolCallsAsMaps(result.ToolCalls)
		if l.Transcript != nil {
			_ = l.Transcript.AssistantMessage(result.Text, toolCallMaps)
		}

		if len(result.ToolCalls) == 0 {
			l.Messages = append(l.Messages, Message{Role: RoleAssistant, Content: result.Text})
			l.Stats = l.Stats.Add(op, 0)
			reason = "no_tool_calls"
			break
		}

		l.Messages = append(l.Messages, Message{Role: RoleAssistant, Content: result.Text, ToolCalls: result.ToolCalls})
		l.Stats = l.Stats.Add(op, len(result.ToolCalls))

		for _, tc := range result.ToolCalls {
			l.executeOneToolCall(ctx, tc)
		}
	}

	var stopResult hooks.StopResult
	if l.Hooks != nil {
		stopResult = l.Hooks.OnStop(ctx, reason, lastAssistantText)
	}
	return lastAssistantText, stopResult.InjectedPrompt, stopResult.ForceContinue, nil
}

func toolCallsAsMaps(calls []ToolCall) []map[string]any {
	if len(calls) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		out = append(out, map[string]any{"id": c.ID, "name": c.Name, "arguments": c.Arguments})
	}
	return out
}

// parseArguments decodes a tool call's JSON-as-string arguments.
// Malformed JSON is not assistant-visible: it is silently substituted
// with an empty object rather than surfaced as a tool error.
func parseArguments(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	_ = json.Unmarshal([]byte(raw), &args)
	return args
}

// executeOneToolCall runs the full resolution path for a single tool
// call: pre-hook, policy check, dispatch, post-hook, and appends the
// resulting tool message. The policy decision is evaluated against the
// ORIGINAL parsed arguments; a pre-tool-use rewrite only takes effect for
// the dispatched call, so a hook rewrite can never retroactively change
// what was already decided.
func (l *Loop) executeOneToolCall(ctx context.Context, tc ToolCall) {
	args := parseArguments(tc.Arguments)

	if l.Transcript != nil {
		if l.SubagentID != "" {
			_ = l.Transcript.SubagentToolCall(l.SubagentID, tc.ID, tc.Name, args)
		} else {
			_ = l.Transcript.ToolCall(tc.ID, tc.Name, args)
		}
	}

	start := time.Now()
	result, errMsg, dispatched := l.runToolCall(ctx, tc, args)

	duration := time.Since(start)
	if l.Metrics != nil {
		status := "ok"
		if errMsg != "" {
			status = "error"
		}
		l.Metrics.RecordToolExecution(tc.Name, status, duration.Seconds())
	}
	if l.Hooks != nil {
		l.Hooks.PostToolUse(ctx, tc.Name, args, result, errMsg, duration)
	}
	if l.Transcript != nil {
		_ = l.Transcript.ToolResult(tc.ID, tc.Name, result, errMsg)
	}
	if dispatched && l.OnToolDispatched != nil {
		l.OnToolDispatched(tc.Name, args, errMsg)
	}
	if l.OnToolResult != nil {
		l.OnToolResult(tc.Name, errMsg)
	}

	serialized, _ := json.Marshal(result)
	l.Messages = append(l.Messages, Message{
		Role:       RoleTool,
		Content:    string(serialized),
		ToolCallID: tc.ID,
	})
}

// runToolCall resolves a single tool call to (result, errMsg, dispatched):
// the allowed-tools gate and pre-tool hook veto short-circuit before the
// policy engine ever runs; dispatched is true only once the call actually
// reached the dispatcher, per OnToolDispatched's contract.
func (l *Loop) runToolCall(ctx context.Context, tc ToolCall, args map[string]any) (result any, errMsg string, dispatched bool) {
	if tc.ValidationErr != "" {
		te := toolerr.New(toolerr.CodeInvalidArguments, tc.ValidationErr)
		return map[string]any{"error": te}, te.Error(), false
	}
	if (l.DenyTask && tc.Name == "Task") || (l.AllowedTools != nil && !policy.NameMatchesAny(l.AllowedTools, tc.Name)) {
		te := toolerr.New(toolerr.CodeToolNotAllowed, tc.Name+" is not in this session's allowed tool set")
		return map[string]any{"error": te}, te.Error(), false
	}

	pre := hooks.PreToolUseResult{Proceed: true, RewrittenArgs: args}
	if l.Hooks != nil {
		pre = l.Hooks.PreToolUse(ctx, tc.Name, args)
	}
	if !pre.Proceed {
		te := toolerr.New(toolerr.CodeHookBlocked, "pre-tool hook vetoed "+tc.Name)
		return map[string]any{"error": te}, te.Error(), false
	}

	allowed, verdict, perr := l.Policy.CheckPermission(tc.Name, args, l.Prompter)
	if l.Transcript != nil {
		_ = l.Transcript.PolicyDecision(tc.Name, verdict.Decision.String(), verdict.Rule)
	}
	if l.Metrics != nil {
		l.Metrics.RecordPolicyDecision(tc.Name, verdict.Decision.String())
	}
	if perr != nil || !allowed {
		te := toolerr.New(toolerr.CodePermissionDenied, "denied by policy: "+tc.Name)
		return map[string]any{"error": te}, te.Error(), false
	}

	dispatchArgs := pre.RewrittenArgs
	if dispatchArgs == nil {
		dispatchArgs = args
	}
	body, derr := l.Dispatcher.Dispatch(ctx, tc.Name, dispatchArgs)
	if derr != nil {
		return map[string]any{"error": derr}, derr.Error(), true
	}
	return body, "", true
}

func (l *Loop) dispatchActivateSkill(ctx context.Context, root string, args map[string]any) (any, *toolerr.Error) {
	name, _ := args["name"].(string)
	if name == "" {
		return nil, toolerr.New(toolerr.CodeMissingName, "ActivateSkill requires a name")
	}
	if l.ActivateSkill == nil {
		return nil, toolerr.New(toolerr.CodeActivationFailed, "no skill packs are configured")
	}
	activation, err := l.ActivateSkill(name)
	if err != nil || activation == nil {
		msg := "activation failed"
		if err != nil {
			msg = err.Error()
		}
		return nil, toolerr.New(toolerr.CodeActivationFailed, msg)
	}
	l.activeSkill = activation
	if l.Transcript != nil {
		_ = l.Transcript.SkillActivate(name)
	}
	return map[string]any{"activated": name}, nil
}

func (l *Loop) dispatchEnterPlanMode(ctx context.Context, root string, args map[string]any) (any, *toolerr.Error) {
	l.Plan.EnterPlanning()
	return map[string]any{"phase": l.Plan.Phase.String()}, nil
}

func (l *Loop) dispatchTask(ctx context.Context, root string, args map[string]any) (any, *toolerr.Error) {
	agentName, _ := args["agent"].(string)
	prompt, _ := args["prompt"].(string)
	if agentName == "" {
		return nil, toolerr.New(toolerr.CodeMissingAgent, "Task requires an agent name")
	}
	spec, ok := l.Subagents[agentName]
	if !ok {
		return nil, toolerr.New(toolerr.CodeAgentNotFound, "no such subagent: "+agentName)
	}

	subagentID := uuid.NewString()
	if l.Transcript != nil {
		_ = l.Transcript.SubagentStart(subagentID, agentName, prompt)
	}
	start := time.Now()
	out, ok2, runErr := l.RunSubagent(ctx, subagentID, spec, root, prompt)
	duration := time.Since(start)

	if l.Hooks != nil {
		l.Hooks.OnSubagentStop(ctx, agentName, ok2, out.Text, duration)
	}
	if l.Transcript != nil {
		_ = l.Transcript.SubagentEnd(subagentID, out.Text)
	}
	if runErr != nil {
		return nil, toolerr.New(toolerr.CodeSubagentError, runErr.Error())
	}
	return out, nil
}
