package agent

import (
	"encoding/json"

	"github.com/jgarzik/yo/internal/mcp"
	"github.com/jgarzik/yo/internal/plan"
	"github.com/jgarzik/yo/internal/policy"
)

func schema(props map[string]any, required []string) json.RawMessage {
	obj := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		obj["required"] = required
	}
	raw, _ := json.Marshal(obj)
	return raw
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// BuiltinSchemas is the function-calling catalog for the seven built-in
// tools (Read, Write, Edit, Patch, Grep, Glob, Bash), plus the meta tools
// (Task, ActivateSkill, EnterPlanMode) the loop always knows how to offer.
func BuiltinSchemas() []ToolSchema {
	return []ToolSchema{
		{Name: "Read", Description: "Read a file's contents.", Parameters: schema(map[string]any{
			"path": strProp("path relative to the workspace root"),
		}, []string{"path"})},
		{Name: "Write", Description: "Write content to a file, creating it if needed.", Parameters: schema(map[string]any{
			"path":    strProp("path relative to the workspace root"),
			"content": strProp("full file content"),
		}, []string{"path", "content"})},
		{Name: "Edit", Description: "Apply find/replace edits to a file.", Parameters: schema(map[string]any{
			"path":  strProp("path relative to the workspace root"),
			"edits": map[string]any{"type": "array", "description": "list of {find, replace, count?}"},
		}, []string{"path", "edits"})},
		{Name: "Patch", Description: "Apply a unified diff patch.", Parameters: schema(map[string]any{
			"patch":    strProp("unified diff text"),
			"path":     strProp("optional single-file scope"),
			"dry_run":  map[string]any{"type": "boolean", "description": "validate without writing"},
		}, []string{"patch"})},
		{Name: "Grep", Description: "Search file contents by regex.", Parameters: schema(map[string]any{
			"pattern": strProp("regular expression"),
			"path":    strProp("optional scoping path"),
			"glob":    strProp("optional filename glob"),
		}, []string{"pattern"})},
		{Name: "Glob", Description: "Find files by glob pattern.", Parameters: schema(map[string]any{
			"pattern": strProp("glob pattern"),
		}, []string{"pattern"})},
		{Name: "Bash", Description: "Run a shell command.", Parameters: schema(map[string]any{
			"command": strProp("shell command line"),
		}, []string{"command"})},
		{Name: "Task", Description: "Delegate work to a named subagent.", Parameters: schema(map[string]any{
			"agent":  strProp("subagent name"),
			"prompt": strProp("task prompt for the subagent"),
		}, []string{"agent", "prompt"})},
		{Name: "ActivateSkill", Description: "Load a named skill pack's instructions into context.", Parameters: schema(map[string]any{
			"name": strProp("skill pack name"),
		}, []string{"name"})},
		{Name: "EnterPlanMode", Description: "Switch the session into read-only planning mode.", Parameters: schema(map[string]any{}, nil)},
	}
}

// externalSchemas converts the manager's aggregated MCP tool catalog into
// the loop's ToolSchema shape.
func externalSchemas(tools []mcp.ToolDef) []ToolSchema {
	out := make([]ToolSchema, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema
		if len(params) == 0 {
			params = schema(map[string]any{}, nil)
		}
		out = append(out, ToolSchema{Name: t.FullName, Description: t.Description, Parameters: params})
	}
	return out
}

// alwaysRetained is the set of meta tools that survive any
// allowed_tools/skill intersection — without these a session can never
// unblock itself (ActivateSkill) or delegate (Task), except inside a
// subagent where Task is unconditionally stripped by the caller.
var alwaysRetained = map[string]bool{"ActivateSkill": true, "Task": true}

// BuildCatalog assembles the tool catalog for one loop iteration: built-ins
// plus aggregated external tools, filtered by plan-mode read-only
// restriction and then by an optional allowed-tools pattern list (used by
// skill activation and, with Task pre-stripped, by the subagent runtime).
func BuildCatalog(builtins []ToolSchema, external []ToolSchema, planPhase plan.Phase, allowedPatterns []string) []ToolSchema {
	all := append(append([]ToolSchema{}, builtins...), external...)

	if planPhase == plan.Planning {
		var ro []ToolSchema
		for _, t := range all {
			for _, name := range plan.ReadOnlyTools {
				if t.Name == name {
					ro = append(ro, t)
					break
				}
			}
		}
		all = ro
	}

	if len(allowedPatterns) == 0 {
		return all
	}

	var out []ToolSchema
	for _, t := range all {
		if alwaysRetained[t.Name] {
			out = append(out, t)
			continue
		}
		if policy.NameMatchesAny(allowedPatterns, t.Name) {
			out = append(out, t)
		}
	}
	return out
}
