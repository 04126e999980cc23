// Package llmclient implements agent.Provider against real model backends:
// Anthropic's Messages API and any OpenAI-compatible chat-completions
// endpoint. A Router picks between them per call by Target.Backend, so one
// agent.Loop can serve requests that name different backends (e.g. a
// subagent pinned to a cheaper model on a different provider) without the
// loop itself knowing anything about HTTP clients.
package llmclient

import (
	"context"
	"fmt"

	"github.com/jgarzik/yo/internal/agent"
)

// Router dispatches Complete calls to a registered agent.Provider by
// Target.Backend.
type Router struct {
	providers map[string]agent.Provider
}

// NewRouter builds an empty router; register backends with Register.
func NewRouter() *Router {
	return &Router{providers: make(map[string]agent.Provider)}
}

// Register installs provider under backend name (e.g. "anthropic",
// "openai"). A second Register for the same name replaces the first.
func (r *Router) Register(backend string, provider agent.Provider) {
	r.providers[backend] = provider
}

// Complete implements agent.Provider by looking up Target.Backend and
// forwarding. An empty Backend is an error here: callers resolve the
// default backend before constructing a Target (see config.Config.Target).
// Any tool calls in the response are validated against their catalog
// schema before being handed back. A schema mismatch is a hallucinated
// argument shape, not a transport failure: it is recorded on the offending
// ToolCall's ValidationErr rather than failing this call, so the loop can
// turn it into a per-call tool error result and let the model recover
// instead of aborting the whole turn.
func (r *Router) Complete(ctx context.Context, target agent.Target, system string, messages []agent.Message, tools []agent.ToolSchema) (agent.CompletionResult, error) {
	provider, ok := r.providers[target.Backend]
	if !ok {
		return agent.CompletionResult{}, fmt.Errorf("llmclient: no provider registered for backend %q", target.Backend)
	}
	result, err := provider.Complete(ctx, target, system, messages, tools)
	if err != nil {
		return agent.CompletionResult{}, err
	}
	for i, tc := range result.ToolCalls {
		if verr := ValidateArguments(tools, tc); verr != nil {
			result.ToolCalls[i].ValidationErr = verr.Error()
		}
	}
	return result, nil
}
