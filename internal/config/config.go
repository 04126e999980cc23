// Package config loads the YAML configuration file that wires one
// session's permission policy, MCP servers, lifecycle hooks, skill-pack
// directories, model target, and iteration/output limits.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jgarzik/yo/internal/agent"
	"github.com/jgarzik/yo/internal/hooks"
	"github.com/jgarzik/yo/internal/mcp"
	"github.com/jgarzik/yo/internal/policy"
)

// Config is the root of the on-disk configuration file.
type Config struct {
	Model          string             `yaml:"model"`
	MaxIterations  int                `yaml:"max_iterations"`
	Permissions    PermissionsConfig  `yaml:"permissions"`
	MCPServers     []MCPServerConfig  `yaml:"mcp_servers"`
	Hooks          []HookConfig       `yaml:"hooks"`
	SkillDirs      []string           `yaml:"skill_dirs"`
	Bash           BashConfig         `yaml:"bash"`
	Observability  ObservabilityConfig `yaml:"observability"`
	SessionDBPath  string             `yaml:"session_db_path"`
	TranscriptPath string             `yaml:"transcript_path"`
}

// PermissionsConfig is the YAML shape of a policy.Config.
type PermissionsConfig struct {
	Mode  string   `yaml:"mode"`
	Deny  []string `yaml:"deny"`
	Ask   []string `yaml:"ask"`
	Allow []string `yaml:"allow"`
}

// ToPolicy builds the runtime policy.Config this section describes.
func (p PermissionsConfig) ToPolicy() *policy.Config {
	cfg := policy.NewConfig(policy.ParseMode(p.Mode))
	cfg.Deny = append([]string(nil), p.Deny...)
	cfg.Ask = append([]string(nil), p.Ask...)
	cfg.Allow = append([]string(nil), p.Allow...)
	return cfg
}

// MCPServerConfig is the YAML shape of one mcp.ServerConfig; Transport is
// a plain string here since mcp.ServerConfig deliberately excludes it
// from YAML decoding (a tagged variant, not a free-form field).
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	Cwd       string            `yaml:"cwd"`
	URL       string            `yaml:"url"`
	Enabled   bool              `yaml:"enabled"`
	AutoStart bool              `yaml:"auto_start"`
	TimeoutMs int               `yaml:"timeout_ms"`
}

// ToServerConfig resolves the transport string and returns the runtime
// descriptor, validated.
func (m MCPServerConfig) ToServerConfig() (mcp.ServerConfig, error) {
	kind, err := mcp.ParseKind(m.Transport)
	if err != nil {
		return mcp.ServerConfig{}, fmt.Errorf("mcp server %s: %w", m.Name, err)
	}
	sc := mcp.ServerConfig{
		Name:      m.Name,
		Transport: kind,
		Command:   m.Command,
		Args:      m.Args,
		Env:       m.Env,
		Cwd:       m.Cwd,
		URL:       m.URL,
		Enabled:   m.Enabled,
		AutoStart: m.AutoStart,
		TimeoutMs: m.TimeoutMs,
	}
	if err := sc.Validate(); err != nil {
		return mcp.ServerConfig{}, err
	}
	return sc, nil
}

// HookConfig is the YAML shape of one hooks.Descriptor; Matcher is a
// regular expression source string, compiled at load time.
type HookConfig struct {
	Event     string   `yaml:"event"`
	Matcher   string   `yaml:"matcher"`
	Command   []string `yaml:"command"`
	TimeoutMs int      `yaml:"timeout_ms"`
}

var validEvents = map[string]hooks.EventKind{
	"PreToolUse":       hooks.PreToolUse,
	"PostToolUse":      hooks.PostToolUse,
	"UserPromptSubmit": hooks.UserPromptSubmit,
	"Stop":             hooks.Stop,
	"SubagentStop":     hooks.SubagentStop,
	"SessionStart":     hooks.SessionStart,
}

// ToDescriptor compiles this hook's matcher and resolves its event kind.
func (h HookConfig) ToDescriptor() (hooks.Descriptor, error) {
	kind, ok := validEvents[h.Event]
	if !ok {
		return hooks.Descriptor{}, fmt.Errorf("hook: unknown event %q", h.Event)
	}
	if len(h.Command) == 0 {
		return hooks.Descriptor{}, fmt.Errorf("hook %s: command is required", h.Event)
	}
	var matcher *regexp.Regexp
	if h.Matcher != "" {
		re, err := regexp.Compile(h.Matcher)
		if err != nil {
			return hooks.Descriptor{}, fmt.Errorf("hook %s: bad matcher: %w", h.Event, err)
		}
		matcher = re
	}
	timeout := time.Duration(h.TimeoutMs) * time.Millisecond
	return hooks.Descriptor{Event: kind, Matcher: matcher, Command: h.Command, Timeout: timeout}, nil
}

// BashConfig is the YAML shape of tools.BashConfig.
type BashConfig struct {
	TimeoutMs      int `yaml:"timeout_ms"`
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// ObservabilityConfig controls logging/metrics/tracing bring-up.
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level"`
	LogJSON       bool   `yaml:"log_json"`
	MetricsAddr   string `yaml:"metrics_addr"`
	TracingOTLP   string `yaml:"tracing_otlp_endpoint"`
	ServiceName   string `yaml:"service_name"`
}

// Target resolves the configured model string into an agent.Target,
// defaulting Backend when the string carries none.
func (c *Config) Target() agent.Target {
	t := agent.ParseTarget(c.Model)
	if t.Backend == "" {
		t.Backend = "anthropic"
	}
	return t
}

// Resolved is the fully decoded, validated configuration ready to wire a
// session: every MCP server and hook descriptor has been parsed and
// validated, so wiring code need not handle parse errors again.
type Resolved struct {
	Config
	Policy      *policy.Config
	MCPServers  []mcp.ServerConfig
	Hooks       []hooks.Descriptor
}

// Resolve validates and converts every sub-section of cfg, failing fast
// on the first error.
func Resolve(cfg Config) (*Resolved, error) {
	r := &Resolved{Config: cfg, Policy: cfg.Permissions.ToPolicy()}

	for _, m := range cfg.MCPServers {
		sc, err := m.ToServerConfig()
		if err != nil {
			return nil, err
		}
		r.MCPServers = append(r.MCPServers, sc)
	}

	for _, h := range cfg.Hooks {
		d, err := h.ToDescriptor()
		if err != nil {
			return nil, err
		}
		r.Hooks = append(r.Hooks, d)
	}

	if cfg.MaxIterations <= 0 {
		r.MaxIterations = agent.DefaultMaxIterations
	}

	return r, nil
}

