// Package mcp implements the JSON-RPC 2.0 transport layer (stdio, HTTP,
// SSE) and the external tool-server manager that multiplexes MCP-style
// tool servers for the agent loop.
package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TransportKind discriminates the three transport variants. The transport
// is a tagged variant with explicit dispatch rather than an
// interface/trait: the three kinds share a small shape and do not
// benefit from dynamic dispatch.
type TransportKind int

const (
	KindStdio TransportKind = iota
	KindHTTP
	KindSSE
)

func ParseKind(s string) (TransportKind, error) {
	switch s {
	case "stdio":
		return KindStdio, nil
	case "http":
		return KindHTTP, nil
	case "sse":
		return KindSSE, nil
	default:
		return 0, fmt.Errorf("unknown transport kind %q", s)
	}
}

// ServerConfig describes one external tool server. Stdio descriptors
// require Command; http/sse require URL — enforced by Validate at
// config-validate time.
type ServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport TransportKind     `yaml:"-" json:"-"`
	Command   string            `yaml:"command" json:"command,omitempty"`
	Args      []string          `yaml:"args" json:"args,omitempty"`
	Env       map[string]string `yaml:"env" json:"env,omitempty"`
	Cwd       string            `yaml:"cwd" json:"cwd,omitempty"`
	URL       string            `yaml:"url" json:"url,omitempty"`
	Enabled   bool              `yaml:"enabled" json:"enabled"`
	AutoStart bool              `yaml:"auto_start" json:"auto_start"`
	TimeoutMs int               `yaml:"timeout_ms" json:"timeout_ms"`
}

func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("server name is required")
	}
	switch c.Transport {
	case KindStdio:
		if c.Command == "" {
			return fmt.Errorf("server %s: stdio transport requires command", c.Name)
		}
	case KindHTTP, KindSSE:
		if c.URL == "" {
			return fmt.Errorf("server %s: http/sse transport requires url", c.Name)
		}
		if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
			return fmt.Errorf("server %s: url must start with http:// or https://", c.Name)
		}
	default:
		return fmt.Errorf("server %s: unknown transport", c.Name)
	}
	return nil
}

func (c *ServerConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ToolDef is one tool advertised by a connected server, already carrying
// its fully-qualified dispatch name.
type ToolDef struct {
	Server      string          `json:"server"`
	LocalName   string          `json:"local_name"`
	FullName    string          `json:"full_name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// FullName builds "mcp." + server + "." + local.
func FullName(server, local string) string {
	return "mcp." + server + "." + local
}

// IsMCPTool reports whether a dispatch name refers to an external tool.
func IsMCPTool(name string) bool {
	return strings.HasPrefix(name, "mcp.")
}

// ParseMCPToolName splits "mcp.<server>.<tool>" into its parts. The tool
// name itself may contain dots, so only the first two dot-separated
// segments after the "mcp." prefix are consumed as the server name.
func ParseMCPToolName(fullName string) (server, local string, ok bool) {
	if !strings.HasPrefix(fullName, "mcp.") {
		return "", "", false
	}
	rest := fullName[len("mcp."):]
	idx := strings.IndexByte(rest, '.')
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// JSON-RPC 2.0 wire types.

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func NewRequest(id *uint64, method string, params any) (Request, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return Request{}, err
		}
		raw = b
	}
	return Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}, nil
}

// MCP method names and protocol constants.
const (
	MethodInitialize              = "initialize"
	MethodNotificationInitialized = "notifications/initialized"
	MethodToolsList               = "tools/list"
	MethodToolsCall               = "tools/call"
	ProtocolVersion               = "2024-11-05"
)

type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	Capabilities    struct{}   `json:"capabilities"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ClientInfo `json:"serverInfo"`
}

type MCPTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type ListToolsResult struct {
	Tools []MCPTool `json:"tools"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ToolCallResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

type ToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Unwrap collapses a {content:[{type:"text",text}]} result to {result:
// text}. Multiple text parts are concatenated.
func (r ToolCallResult) Unwrap() map[string]any {
	var sb strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return map[string]any{"result": sb.String()}
}
