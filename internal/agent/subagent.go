package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jgarzik/yo/internal/dispatch"
	"github.com/jgarzik/yo/internal/hooks"
	"github.com/jgarzik/yo/internal/plan"
	"github.com/jgarzik/yo/internal/policy"
)

// Spec is a subagent descriptor: a named, clamped re-entry into the turn
// loop with its own tool filter, permission mode, iteration cap, and
// optional system prompt — no handoff rules, swarm roles, or dependency
// graph, since subagents here have no access to further delegation.
type Spec struct {
	Name         string
	Description  string
	Target       *Target // optional override of the parent's target
	AllowedTools []string
	Mode         policy.Mode
	MaxTurns     int
	SystemPrompt string
}

// Validate enforces that max_turns is a positive iteration cap.
func (s *Spec) Validate() error {
	if s.MaxTurns <= 0 {
		return fmt.Errorf("subagent %q: max_turns must be > 0", s.Name)
	}
	return nil
}

// ProposedEdit is one {find, replace} entry extracted from an Edit call a
// subagent made.
type ProposedEdit struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// SubagentResult is the structured value Task returns.
type SubagentResult struct {
	Agent           string         `json:"agent"`
	OK              bool           `json:"ok"`
	Text            string         `json:"text"`
	FilesReferenced []string       `json:"files_referenced,omitempty"`
	ProposedEdits   []ProposedEdit `json:"proposed_edits,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// RunSubagent executes spec's nested turn loop against prompt. It returns
// the structured result, whether every tool call the subagent made
// succeeded, and a non-nil error only for a failure of the subagent
// mechanism itself (not an individual tool error, which is folded into
// the result and fed back to the model as usual).
func (l *Loop) RunSubagent(ctx context.Context, subagentID string, spec *Spec, root, prompt string) (SubagentResult, bool, error) {
	if err := spec.Validate(); err != nil {
		return SubagentResult{Agent: spec.Name, OK: false, Error: err.Error()}, false, err
	}

	// 4.7.1: clamp mode to min(spec.mode, parent.mode); build a fresh,
	// non-interactive policy engine from the parent's rule lists (Ask ->
	// Deny, since AutoDeny never confirms).
	clampedMode := policy.Clamp(spec.Mode, l.Policy.Mode)
	subPolicy := l.Policy.Clone()
	subPolicy.SetMode(clampedMode)

	// 4.7.1: a fresh dispatcher sharing the parent's root/MCP manager/bash
	// config but with Task always nil — belt-and-suspenders alongside
	// DenyTask below, since a stray dispatcher reuse must never resurface
	// delegation.
	subDispatcher := &dispatch.Dispatcher{
		Root:    root,
		BashCfg: l.Dispatcher.BashCfg,
		MCP:     l.Dispatcher.MCP,
	}

	target := l.Target
	if spec.Target != nil {
		target = *spec.Target
	}

	tracker := &fileEditTracker{}
	sub := &Loop{
		Policy:           subPolicy,
		Prompter:         policy.AutoDeny{},
		Hooks:            hooks.NewRunner(nil),
		Dispatcher:       subDispatcher,
		Transcript:       l.Transcript,
		Plan:             &plan.State{},
		Provider:         l.Provider,
		Target:           target,
		CostTable:        l.CostTable,
		MaxIterations:    spec.MaxTurns,
		BaseSystemPrompt: spec.SystemPrompt,
		AllowedTools:     spec.AllowedTools,
		DenyTask:         true,
		SubagentID:       subagentID,
		OnAssistantText:  l.OnAssistantText,
		OnToolDispatched: tracker.observe,
		OnToolResult:     tracker.observeResult,
		Logger:           l.Logger,
		Metrics:          l.Metrics,
		Tracer:           l.Tracer,
	}
	sub = NewLoop(sub)

	text, _, _, err := sub.RunTurn(ctx, prompt)
	ok := err == nil && !tracker.sawError

	result := SubagentResult{
		Agent:           spec.Name,
		OK:              ok,
		Text:            text,
		FilesReferenced: tracker.files(),
		ProposedEdits:   tracker.edits,
	}
	if err != nil {
		result.Error = err.Error()
	}
	l.Stats = l.Stats.Merge(sub.Stats)
	return result, ok, err
}

// fileEditTracker accumulates a SubagentResult's files_referenced and
// proposed_edits fields by observing every Read/Edit/Write call a
// subagent dispatches.
type fileEditTracker struct {
	seen     map[string]bool
	order    []string
	edits    []ProposedEdit
	sawError bool
}

func (t *fileEditTracker) files() []string {
	if len(t.order) == 0 {
		return nil
	}
	return t.order
}

func (t *fileEditTracker) note(path string) {
	if path == "" {
		return
	}
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if !t.seen[path] {
		t.seen[path] = true
		t.order = append(t.order, path)
	}
}

// observeResult is wired as the subagent loop's OnToolResult callback: it
// flags sawError for ANY tool call that produced an error result, however
// it was resolved (allowed-tools gate, hook veto, policy denial, or a real
// dispatch failure) "ok = no tool call produced an
// error result".
func (t *fileEditTracker) observeResult(name string, errMsg string) {
	if errMsg != "" {
		t.sawError = true
	}
}

// observe is wired as the subagent loop's OnToolDispatched callback,
// recording path args from Read/Edit/Write and find/replace pairs from
// Edit — only calls that actually reached the dispatcher carry meaningful
// path/edit arguments.
func (t *fileEditTracker) observe(name string, args map[string]any, errMsg string) {
	switch name {
	case "Read", "Write":
		if p, ok := args["path"].(string); ok {
			t.note(p)
		}
	case "Edit":
		if p, ok := args["path"].(string); ok {
			t.note(p)
		}
		if raw, ok := args["edits"]; ok {
			b, _ := json.Marshal(raw)
			var ops []struct {
				Find    string `json:"find"`
				Replace string `json:"replace"`
			}
			if json.Unmarshal(b, &ops) == nil {
				for _, op := range ops {
					t.edits = append(t.edits, ProposedEdit{Find: op.Find, Replace: op.Replace})
				}
			}
		}
	}
}
