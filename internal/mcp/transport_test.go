package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPTransport_Roundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"ok":true}`)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil, 0)
	req, err := NewRequest(nil, "ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := tr.Send(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID == nil || *resp.ID != 1 {
		t.Fatalf("expected response id 1, got %v", resp.ID)
	}
}

func TestSSETransport_MatchesByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		// Emit an unrelated event first, then the matching one.
		otherID := uint64(999)
		other := Response{JSONRPC: "2.0", ID: &otherID, Result: json.RawMessage(`{"x":1}`)}
		ob, _ := json.Marshal(other)
		mine := Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"y":2}`)}
		mb, _ := json.Marshal(mine)
		flusher, _ := w.(http.Flusher)
		w.Write([]byte("data: " + string(ob) + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
		w.Write([]byte("data: " + string(mb) + "\n\n"))
	}))
	defer srv.Close()

	tr := NewSSETransport(srv.URL, nil, 0)
	req, err := NewRequest(nil, "ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := tr.Send(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(resp.Result), "\"y\":2") {
		t.Fatalf("expected the id-matching event, got %s", resp.Result)
	}
}

func TestStdioTransport_EchoRoundtrip(t *testing.T) {
	tr, err := NewStdioTransport(context.Background(), &ServerConfig{
		Name:    "echo",
		Command: "/bin/sh",
		Args:    []string{"-c", "while IFS= read -r line; do echo \"$line\"; done"},
	})
	if err != nil {
		t.Skipf("sh not available: %v", err)
	}
	defer tr.Close()

	req, err := NewRequest(nil, "ping", map[string]string{"a": "b"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := tr.Send(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID == nil || *resp.ID != 1 {
		t.Fatalf("expected matched request id 1, got %v", resp.ID)
	}
}

func TestParseMCPToolName(t *testing.T) {
	server, local, ok := ParseMCPToolName("mcp.echo.add")
	if !ok || server != "echo" || local != "add" {
		t.Fatalf("unexpected parse: server=%q local=%q ok=%v", server, local, ok)
	}
	if _, _, ok := ParseMCPToolName("Bash"); ok {
		t.Fatal("a bare built-in name must not parse as an mcp tool")
	}
}
