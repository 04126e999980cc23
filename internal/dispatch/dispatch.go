// Package dispatch implements the tool-name router: given a tool name,
// its arguments, and the workspace root, it sends the
// call to the external (mcp.*) manager, a built-in ToolFn, the subagent
// runtime (Task), or a meta-handler (ActivateSkill, EnterPlanMode), and
// produces the unknown_tool error for anything else.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jgarzik/yo/internal/mcp"
	"github.com/jgarzik/yo/internal/tools"
	"github.com/jgarzik/yo/internal/toolerr"
)

// Handler is the signature every built-in, Task, and meta tool is routed
// through once its arguments have been decoded from the caller-supplied
// map. Built-ins never return a toolerr.Error for their own domain logic
// (a non-zero Bash exit code, a Grep with zero matches) — only for
// dispatch-level failures (bad path, I/O error, malformed patch).
type Handler func(ctx context.Context, root string, args map[string]any) (any, *toolerr.Error)

// Dispatcher owns the wiring a single call needs: the workspace root, the
// external tool-server manager, Bash's resource limits, and the
// optional Task/meta handlers supplied once the agent loop, subagent
// runtime, and skill/plan packages exist. A nil handler for an
// unregistered name still produces unknown_tool rather than a panic.
type Dispatcher struct {
	Root    string
	BashCfg tools.BashConfig
	MCP     *mcp.Manager

	Task          Handler
	ActivateSkill Handler
	EnterPlanMode Handler
}

// decodeArgs round-trips args through JSON into target. A decode
// failure is not fatal: target is left at its zero value and dispatch
// proceeds as if the tool had been called with no arguments, rather
// than failing the whole turn over one bad tool call.
func decodeArgs(args map[string]any, target any) {
	raw, err := json.Marshal(args)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, target)
}

// Dispatch routes name to its handler and returns the success body (a
// concrete *Result struct) or a structured error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (any, *toolerr.Error) {
	if strings.HasPrefix(name, "mcp.") {
		return d.dispatchMCP(ctx, name, args)
	}

	switch name {
	case "Read":
		var a tools.ReadArgs
		decodeArgs(args, &a)
		res, err := tools.Read(d.Root, a)
		return res, err
	case "Write":
		var a tools.WriteArgs
		decodeArgs(args, &a)
		res, err := tools.Write(d.Root, a)
		return res, err
	case "Edit":
		var a tools.EditArgs
		decodeArgs(args, &a)
		res, err := tools.Edit(d.Root, a)
		return res, err
	case "Patch":
		var a tools.PatchArgs
		decodeArgs(args, &a)
		res, err := tools.Patch(d.Root, a)
		return res, err
	case "Grep":
		var a tools.GrepArgs
		decodeArgs(args, &a)
		res, err := tools.Grep(d.Root, a)
		return res, err
	case "Glob":
		var a tools.GlobArgs
		decodeArgs(args, &a)
		res, err := tools.Glob(d.Root, a)
		return res, err
	case "Bash":
		var a tools.BashArgs
		decodeArgs(args, &a)
		res, err := tools.Bash(ctx, d.Root, a, d.BashCfg)
		return res, err
	case "Task":
		if d.Task == nil {
			return nil, toolerr.New(toolerr.CodeUnknownTool, "Task is not available in this session")
		}
		return d.Task(ctx, d.Root, args)
	case "ActivateSkill":
		if d.ActivateSkill == nil {
			return nil, toolerr.New(toolerr.CodeUnknownTool, "ActivateSkill is not available in this session")
		}
		return d.ActivateSkill(ctx, d.Root, args)
	case "EnterPlanMode":
		if d.EnterPlanMode == nil {
			return nil, toolerr.New(toolerr.CodeUnknownTool, "EnterPlanMode is not available in this session")
		}
		return d.EnterPlanMode(ctx, d.Root, args)
	default:
		return nil, toolerr.New(toolerr.CodeUnknownTool, "unknown tool: "+name)
	}
}

func (d *Dispatcher) dispatchMCP(ctx context.Context, fullName string, args map[string]any) (any, *toolerr.Error) {
	if d.MCP == nil {
		return nil, toolerr.New(toolerr.CodeMCPError, "no external tool-server manager configured")
	}
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	result, callErr := d.MCP.Call(ctx, fullName, raw)
	if callErr != nil {
		return nil, toolerr.New(toolerr.CodeMCPError, callErr.Error())
	}
	return result, nil
}
