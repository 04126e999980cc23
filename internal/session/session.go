// Package session owns the session-scoped mutable state that ties every
// other package into one runnable unit: the policy engine, tool-server
// manager, transcript, hook runner, skill registry, provider router, and
// the agent.Loop itself. Per Design Notes §9, this is modeled as a single
// owned value passed by pointer rather than a collection of process-global
// singletons, so independent sessions (concurrent CLI invocations, tests)
// never share state.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/jgarzik/yo/internal/agent"
	"github.com/jgarzik/yo/internal/config"
	"github.com/jgarzik/yo/internal/cost"
	"github.com/jgarzik/yo/internal/dispatch"
	"github.com/jgarzik/yo/internal/hooks"
	"github.com/jgarzik/yo/internal/llmclient"
	"github.com/jgarzik/yo/internal/mcp"
	"github.com/jgarzik/yo/internal/observability"
	"github.com/jgarzik/yo/internal/plan"
	"github.com/jgarzik/yo/internal/policy"
	"github.com/jgarzik/yo/internal/skills"
	"github.com/jgarzik/yo/internal/tools"
	"github.com/jgarzik/yo/internal/transcript"
)

// Session is the fully wired runtime for one REPL-equivalent CLI
// invocation: it owns the Loop and every collaborator the turn loop
// borrows from during a tool call.
type Session struct {
	ID   string
	Root string

	Resolved   *config.Resolved
	Policy     *policy.Config
	Hooks      *hooks.Runner
	MCP        *mcp.Manager
	Skills     *skills.Registry
	Router     *llmclient.Router
	Transcript *transcript.Transcript
	Store      *Store

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	Loop *agent.Loop

	shutdownTracer func(context.Context) error
}

// Options supplies the collaborators a Session cannot build for itself
// (they require process-wide setup: env vars, stdin/stdout).
type Options struct {
	Root      string
	Prompter  policy.Prompter
	Subagents map[string]*agent.Spec
}

// New wires one Session from a resolved configuration. It registers (but
// does not connect) every MCP server descriptor, builds the hook runner
// and skill registry, resolves LLM providers from environment variables,
// opens the transcript and session store if configured, and constructs
// the agent.Loop with its meta-handlers wired via agent.NewLoop.
func New(cfg *config.Resolved, opts Options) (*Session, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}

	sessionID := uuid.NewString()

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: logFormat(cfg.Observability.LogJSON),
		Output: os.Stderr,
	})
	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: firstNonEmpty(cfg.Observability.ServiceName, "yo"),
		Endpoint:    cfg.Observability.TracingOTLP,
	})

	mgr := mcp.NewManager()
	for i := range cfg.MCPServers {
		if cfg.MCPServers[i].Enabled {
			mgr.Register(&cfg.MCPServers[i])
		}
	}

	skillRegistry, err := skills.NewRegistry(cfg.SkillDirs)
	if err != nil {
		return nil, fmt.Errorf("load skill packs: %w", err)
	}

	hookRunner := hooks.NewRunner(cfg.Hooks)

	router, err := buildRouter(cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider router: %w", err)
	}

	var tr *transcript.Transcript
	if cfg.TranscriptPath != "" {
		tr, err = transcript.Open(cfg.TranscriptPath, sessionID, root)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
	}

	mgr.SetTranscript(tr)

	var store *Store
	if cfg.SessionDBPath != "" {
		store, err = OpenStore(cfg.SessionDBPath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
	}

	bashCfg := tools.BashConfig{TimeoutMs: cfg.Bash.TimeoutMs, MaxOutputBytes: cfg.Bash.MaxOutputBytes}

	s := &Session{
		ID:         sessionID,
		Root:       root,
		Resolved:   cfg,
		Policy:     cfg.Policy,
		Hooks:      hookRunner,
		MCP:        mgr,
		Skills:     skillRegistry,
		Router:     router,
		Transcript: tr,
		Store:      store,
		Logger:     logger,
		Metrics:    metrics,
		Tracer:     tracer,
		shutdownTracer: shutdownTracer,
	}

	dispatcher := &dispatch.Dispatcher{
		Root:    root,
		BashCfg: bashCfg,
		MCP:     mgr,
	}

	prompter := opts.Prompter
	if prompter == nil {
		prompter = policy.AutoDeny{}
	}

	loop := &agent.Loop{
		Policy:           cfg.Policy,
		Prompter:         prompter,
		Hooks:            hookRunner,
		Dispatcher:       dispatcher,
		Transcript:       tr,
		Plan:             &plan.State{},
		Provider:         router,
		Target:           cfg.Target(),
		CostTable:        cost.DefaultTable,
		MaxIterations:    cfg.MaxIterations,
		SessionID:        sessionID,
		BaseSystemPrompt: basePrompt,
		PlanSystemPrompt: planPrompt,
		Subagents:        opts.Subagents,
		Logger:           logger,
		Metrics:          metrics,
		Tracer:           tracer,
		ActivateSkill: func(name string) (*agent.SkillActivation, error) {
			instructions, allowed, err := skillRegistry.Activate(name)
			if err != nil {
				return nil, err
			}
			return &agent.SkillActivation{Name: name, Instructions: instructions, AllowedTools: allowed}, nil
		},
		ExternalTools: mgr.AggregateTools,
	}
	s.Loop = agent.NewLoop(loop)

	if store != nil {
		if err := store.EnsureSession(context.Background(), sessionID, root, cfg.Target().Model); err != nil {
			return nil, fmt.Errorf("record session: %w", err)
		}
	}
	if hookRunner != nil {
		hookRunner.OnSessionStart(context.Background(), sessionID, root)
	}

	return s, nil
}

const basePrompt = `You are a local coding assistant. You have access to filesystem and ` +
	`shell tools rooted at the current workspace. Use tools to read, write, ` +
	`and edit files and run commands as needed to satisfy the user's request. ` +
	`Prefer the smallest change that accomplishes the task.`

const planPrompt = `You are in planning mode: only read-only tools are available. ` +
	`Produce a fenced ` + "```plan```" + ` block containing a SUMMARY: line and one or ` +
	`more STEP N: entries, each with DESCRIPTION:, FILES:, and TOOLS: fields, ` +
	`before taking any further action.`

func logFormat(json bool) string {
	if json {
		return "json"
	}
	return "text"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ConnectAutoStart connects every registered, auto_start-enabled MCP
// server, continuing past individual failures so one misconfigured
// server does not prevent the session from starting.
func (s *Session) ConnectAutoStart(ctx context.Context) []error {
	var errs []error
	for _, sc := range s.Resolved.MCPServers {
		if !sc.Enabled || !sc.AutoStart {
			continue
		}
		if _, _, err := s.MCP.Connect(ctx, sc.Name); err != nil {
			errs = append(errs, fmt.Errorf("connect %s: %w", sc.Name, err))
			if s.Transcript != nil {
				_ = s.Transcript.Emit(transcript.EventMCPInitializeErr, map[string]any{"server": sc.Name, "error": err.Error()})
			}
			continue
		}
		if s.Transcript != nil {
			_ = s.Transcript.Emit(transcript.EventMCPInitializeOK, map[string]any{"server": sc.Name})
		}
	}
	return errs
}

// RunTurn drives one user turn and persists the session's accumulated
// stats, if a store is configured.
func (s *Session) RunTurn(ctx context.Context, prompt string) (text string, err error) {
	text, injected, forceContinue, err := s.Loop.RunTurn(ctx, prompt)
	if err != nil {
		return text, err
	}
	if s.Store != nil {
		if serr := s.Store.SaveStats(ctx, s.ID, s.Loop.Stats); serr != nil && s.Logger != nil {
			s.Logger.Warn(ctx, "failed to persist session stats", "error", serr)
		}
	}
	if forceContinue && injected != "" {
		return s.RunTurn(ctx, injected)
	}
	return text, nil
}

// Close releases every collaborator that owns an OS resource.
func (s *Session) Close() error {
	var first error
	for _, c := range []func() error{
		func() error {
			if s.Transcript != nil {
				return s.Transcript.Close()
			}
			return nil
		},
		func() error {
			if s.Store != nil {
				return s.Store.Close()
			}
			return nil
		},
		func() error {
			if s.shutdownTracer != nil {
				return s.shutdownTracer(context.Background())
			}
			return nil
		},
	} {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildRouter registers whichever provider backends have credentials
// available in the environment. At least one of ANTHROPIC_API_KEY or
// OPENAI_API_KEY must be set, matching the two SDKs the rest of the
// module is grounded on.
func buildRouter(cfg *config.Resolved) (*llmclient.Router, error) {
	router := llmclient.NewRouter()
	registered := 0

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		provider, err := llmclient.NewAnthropicProvider(llmclient.AnthropicConfig{
			APIKey:       key,
			BaseURL:      os.Getenv("ANTHROPIC_BASE_URL"),
			DefaultModel: cfg.Target().Model,
		})
		if err != nil {
			return nil, err
		}
		router.Register("anthropic", provider)
		registered++
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		provider, err := llmclient.NewOpenAIProvider(llmclient.OpenAIConfig{
			APIKey:  key,
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		})
		if err != nil {
			return nil, err
		}
		router.Register("openai", provider)
		registered++
	}

	if registered == 0 {
		return nil, errors.New("no LLM provider credentials found: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}
	return router, nil
}
