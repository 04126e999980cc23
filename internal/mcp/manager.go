package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jgarzik/yo/internal/transcript"
)

// ServerState is one external server's state: descriptor plus connection
// status, the materialised transport handle, and the tools it advertised
// at connect time.
type ServerState struct {
	Descriptor      *ServerConfig
	Connected       bool
	Client          *Client
	AdvertisedTools []ToolDef
}

// Manager holds server descriptors and their states and exposes the five
// external-server operations: connect, disconnect, check_health, call,
// aggregate_tools.
type Manager struct {
	mu      sync.Mutex
	servers map[string]*ServerState

	// Transcript is nil-safe: a Manager built without one (e.g. the `yo
	// mcp` diagnostic subcommands) just skips event emission.
	Transcript *transcript.Transcript
}

func NewManager() *Manager {
	return &Manager{servers: make(map[string]*ServerState)}
}

// SetTranscript wires the transcript a connected Manager emits its
// mcp_server_start/stop/died and mcp_tool_call/result lifecycle events to.
func (m *Manager) SetTranscript(tr *transcript.Transcript) {
	m.Transcript = tr
}

// Register adds a server descriptor without connecting it.
func (m *Manager) Register(cfg *ServerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[cfg.Name] = &ServerState{Descriptor: cfg}
}

// Connect constructs the transport per descriptor, performs the
// initialize handshake, fetches the tool list, and stores the resulting
// state. Errors are reported structured and the server remains
// disconnected.
func (m *Manager) Connect(ctx context.Context, name string) (pid int, toolCount int, err error) {
	m.mu.Lock()
	state, ok := m.servers[name]
	m.mu.Unlock()
	if !ok {
		return 0, 0, fmt.Errorf("unknown server %q", name)
	}

	cfg := state.Descriptor
	var t *Transport
	switch cfg.Transport {
	case KindStdio:
		t, err = NewStdioTransport(ctx, cfg)
	case KindHTTP:
		t = NewHTTPTransport(cfg.URL, nil, cfg.Timeout())
	case KindSSE:
		t = NewSSETransport(cfg.URL, nil, cfg.Timeout())
	default:
		err = fmt.Errorf("unknown transport for server %q", name)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("connect %s: %w", name, err)
	}

	client := NewClient(name, t)
	if _, err := client.Initialize(ctx); err != nil {
		_ = t.Close()
		if m.Transcript != nil {
			_ = m.Transcript.MCPInitializeErr(name, err.Error())
		}
		return 0, 0, err
	}
	if m.Transcript != nil {
		_ = m.Transcript.MCPInitializeOK(name)
	}
	tools, err := client.ListTools(ctx)
	if err != nil {
		_ = t.Close()
		return 0, 0, err
	}

	defs := make([]ToolDef, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, ToolDef{
			Server:      name,
			LocalName:   tool.Name,
			FullName:    FullName(name, tool.Name),
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
		names = append(names, tool.Name)
	}
	if m.Transcript != nil {
		_ = m.Transcript.MCPToolsList(name, names)
	}

	m.mu.Lock()
	state.Connected = true
	state.Client = client
	state.AdvertisedTools = defs
	m.mu.Unlock()

	pid = 0
	if cfg.Transport == KindStdio && t.cmd != nil && t.cmd.Process != nil {
		pid = t.cmd.Process.Pid
	}
	if m.Transcript != nil {
		_ = m.Transcript.MCPServerStart(name)
	}
	return pid, len(defs), nil
}

// Disconnect kills or drops the transport and clears advertised tools.
func (m *Manager) Disconnect(name string) error {
	m.mu.Lock()
	state, ok := m.servers[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown server %q", name)
	}
	if state.Client != nil {
		if err := state.Client.Transport.Close(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	state.Connected = false
	state.Client = nil
	state.AdvertisedTools = nil
	m.mu.Unlock()
	if m.Transcript != nil {
		_ = m.Transcript.MCPServerStop(name)
	}
	return nil
}

// HealthStatus is the observable result of check_health.
type HealthStatus struct {
	Exited   bool
	ExitCode int
}

// CheckHealth performs a non-blocking wait on a stdio server's child.
func (m *Manager) CheckHealth(name string) (*HealthStatus, error) {
	m.mu.Lock()
	state, ok := m.servers[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown server %q", name)
	}
	if state.Client == nil || state.Client.Transport.Kind != KindStdio {
		return nil, nil
	}
	exited, code := state.Client.Transport.TryWait()
	if !exited {
		return nil, nil
	}
	return &HealthStatus{Exited: true, ExitCode: code}, nil
}

// Call splits "mcp.<server>.<tool>", forwards via the server's client,
// and on error opportunistically checks health to detect server death.
func (m *Manager) Call(ctx context.Context, fullName string, arguments json.RawMessage) (map[string]any, error) {
	server, local, ok := ParseMCPToolName(fullName)
	if !ok {
		return nil, fmt.Errorf("malformed mcp tool name %q", fullName)
	}
	m.mu.Lock()
	state, ok := m.servers[server]
	m.mu.Unlock()
	if !ok || !state.Connected || state.Client == nil {
		return nil, fmt.Errorf("server %q not connected", server)
	}

	if m.Transcript != nil {
		var argMap map[string]any
		_ = json.Unmarshal(arguments, &argMap)
		_ = m.Transcript.MCPToolCall(fullName, argMap)
	}

	result, err := state.Client.CallTool(ctx, local, arguments)
	if err != nil {
		if health, herr := m.CheckHealth(server); herr == nil && health != nil && health.Exited {
			if m.Transcript != nil {
				_ = m.Transcript.MCPServerDied(server, health.ExitCode)
			}
		}
		if m.Transcript != nil {
			_ = m.Transcript.MCPToolResult(fullName, nil, err.Error())
		}
		return nil, err
	}
	if m.Transcript != nil {
		_ = m.Transcript.MCPToolResult(fullName, result, "")
	}
	return result, nil
}

// AggregateTools unions all advertised tools across connected servers.
// full_name already embeds the server name so collisions across servers
// are impossible even if two advertise the same local tool name.
func (m *Manager) AggregateTools() []ToolDef {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ToolDef
	for _, state := range m.servers {
		if state.Connected {
			out = append(out, state.AdvertisedTools...)
		}
	}
	return out
}

// FindTool looks up a tool definition by its full name among connected
// servers.
func (m *Manager) FindTool(fullName string) (ToolDef, bool) {
	for _, t := range m.AggregateTools() {
		if t.FullName == fullName {
			return t, true
		}
	}
	return ToolDef{}, false
}
