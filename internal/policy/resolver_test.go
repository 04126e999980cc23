package policy

import "testing"

// Seed scenario 1: allow narrowed by ask.
func TestDecide_AllowNarrowedByAsk(t *testing.T) {
	c := NewConfig(Default)
	c.Allow = []string{"Bash(git:*)"}
	c.Ask = []string{"Bash(git push:*)"}

	if v := c.Decide("Bash", map[string]any{"command": "git diff"}); v.Decision != Allow {
		t.Fatalf("expected Allow, got %v", v.Decision)
	}
	v := c.Decide("Bash", map[string]any{"command": "git push origin main"})
	if v.Decision != Ask {
		t.Fatalf("expected Ask (narrowed), got %v", v.Decision)
	}
}

// Seed scenario 2: built-in deny inescapable.
func TestDecide_BuiltinDenyInescapable(t *testing.T) {
	c := NewConfig(BypassPermissions)
	c.Allow = []string{"Bash(curl:*)"}

	v := c.Decide("Bash", map[string]any{"command": "curl https://x"})
	if v.Decision != Deny {
		t.Fatalf("expected Deny, got %v", v.Decision)
	}
	if v.Rule != "Bash(curl:*)" {
		t.Fatalf("expected matched_rule Bash(curl:*), got %q", v.Rule)
	}
}

func TestDecide_BuiltinDenyWget(t *testing.T) {
	c := NewConfig(BypassPermissions)
	c.Allow = []string{"Bash(wget:*)"}
	v := c.Decide("Bash", map[string]any{"command": "wget https://x"})
	if v.Decision != Deny {
		t.Fatalf("expected Deny for wget, got %v", v.Decision)
	}
}

// Seed scenario 3: MCP wildcard.
func TestDecide_MCPWildcard(t *testing.T) {
	c := NewConfig(Default)
	c.Allow = []string{"mcp.echo.*"}

	if v := c.Decide("mcp.echo.add", nil); v.Decision != Allow {
		t.Fatalf("expected Allow for mcp.echo.add, got %v", v.Decision)
	}
	if v := c.Decide("mcp.git.status", nil); v.Decision != Ask {
		t.Fatalf("expected Ask for mcp.git.status (execution default), got %v", v.Decision)
	}
}

func TestDecide_ReadOnlyAlwaysAllowsInDefault(t *testing.T) {
	c := NewConfig(Default)
	for _, tool := range []string{"Read", "Grep", "Glob"} {
		if v := c.Decide(tool, nil); v.Decision != Allow {
			t.Fatalf("%s expected Allow by category default, got %v", tool, v.Decision)
		}
	}
}

func TestDecide_MutationAsksInDefaultAllowsInAcceptEdits(t *testing.T) {
	c := NewConfig(Default)
	if v := c.Decide("Write", nil); v.Decision != Ask {
		t.Fatalf("expected Ask in Default, got %v", v.Decision)
	}
	c.SetMode(AcceptEdits)
	if v := c.Decide("Write", nil); v.Decision != Allow {
		t.Fatalf("expected Allow in AcceptEdits, got %v", v.Decision)
	}
}

func TestCheckPermission_Allow(t *testing.T) {
	c := NewConfig(Default)
	allowed, v, err := c.CheckPermission("Read", nil, AutoDeny{})
	if err != nil || !allowed || v.Decision != Allow {
		t.Fatalf("expected allowed Allow, got allowed=%v v=%v err=%v", allowed, v, err)
	}
}

func TestCheckPermission_AskNonInteractiveDefaultsDeny(t *testing.T) {
	c := NewConfig(Default)
	allowed, v, err := c.CheckPermission("Write", nil, AutoDeny{})
	if err != nil || allowed || v.Decision != Ask {
		t.Fatalf("expected non-interactive Ask to resolve to allowed=false, got allowed=%v v=%v", allowed, v)
	}
}

func TestCheckPermission_AskAutoYes(t *testing.T) {
	c := NewConfig(Default)
	allowed, _, err := c.CheckPermission("Write", nil, AutoAllow{})
	if err != nil || !allowed {
		t.Fatalf("expected auto-yes to allow, got allowed=%v err=%v", allowed, err)
	}
}

// Rule-ordering testable property: adding an allow rule can never
// override an existing deny/ask rule.
func TestDecide_AllowNeverOverridesDenyOrAsk(t *testing.T) {
	c := NewConfig(Default)
	c.Deny = []string{"Bash(rm:*)"}
	c.Allow = []string{"Bash(rm:*)"}
	if v := c.Decide("Bash", map[string]any{"command": "rm -rf /tmp/x"}); v.Decision != Deny {
		t.Fatalf("deny must win over allow, got %v", v.Decision)
	}
}

// Mode clamp testable property.
func TestClamp(t *testing.T) {
	if Clamp(AcceptEdits, BypassPermissions) != AcceptEdits {
		t.Fatal("clamp should return the lesser mode")
	}
	if Clamp(BypassPermissions, Default) != Default {
		t.Fatal("clamp should return the lesser mode regardless of argument order")
	}
}
