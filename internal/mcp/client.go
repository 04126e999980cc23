package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client wraps a Transport with the MCP handshake and tool operations:
// initialize, notifications/initialized, tools/list, tools/call.
type Client struct {
	Transport *Transport
	ServerID  string
}

func NewClient(serverID string, t *Transport) *Client {
	return &Client{Transport: t, ServerID: serverID}
}

// Initialize performs the MCP handshake: issues initialize with protocol
// version 2024-11-05 and a client-info block, then fires
// notifications/initialized with no response expected.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      ClientInfo{Name: "yo", Version: "0.1.0"},
	}
	req, err := NewRequest(nil, MethodInitialize, params)
	if err != nil {
		return InitializeResult{}, err
	}
	resp, err := c.Transport.Send(ctx, req)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("initialize %s: %w", c.ServerID, err)
	}
	if resp.Error != nil {
		return InitializeResult{}, fmt.Errorf("initialize %s: %s", c.ServerID, resp.Error.Message)
	}
	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return InitializeResult{}, fmt.Errorf("decode initialize result: %w", err)
	}
	if err := c.Transport.Notify(ctx, MethodNotificationInitialized, struct{}{}); err != nil {
		return result, fmt.Errorf("notifications/initialized: %w", err)
	}
	return result, nil
}

// ListTools populates the tool catalog via tools/list.
func (c *Client) ListTools(ctx context.Context) ([]MCPTool, error) {
	req, err := NewRequest(nil, MethodToolsList, struct{}{})
	if err != nil {
		return nil, err
	}
	resp, err := c.Transport.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tools/list %s: %w", c.ServerID, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/list %s: %s", c.ServerID, resp.Error.Message)
	}
	var result ListToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool sends tools/call {name, arguments} and unwraps a
// {content:[{type:"text",text}]} result to {result: text}.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (map[string]any, error) {
	params := CallToolParams{Name: name, Arguments: arguments}
	req, err := NewRequest(nil, MethodToolsCall, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.Transport.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tools/call %s/%s: %w", c.ServerID, name, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/call %s/%s: %s", c.ServerID, name, resp.Error.Message)
	}
	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tools/call result: %w", err)
	}
	return result.Unwrap(), nil
}
