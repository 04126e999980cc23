package policy

import "testing"

func TestMatchPattern_ExactBareName(t *testing.T) {
	if !MatchPattern("Bash", "Bash", "", false) {
		t.Fatal("bare name should match any invocation of that tool")
	}
	if MatchPattern("Read", "Bash", "", false) {
		t.Fatal("different tool names must not match")
	}
}

func TestMatchPattern_ArgExact(t *testing.T) {
	if !MatchPattern("Bash", "Bash(git status)", "git status", true) {
		t.Fatal("exact primary arg should match")
	}
	if MatchPattern("Bash", "Bash(git status)", "git diff", true) {
		t.Fatal("different primary arg should not match")
	}
	if MatchPattern("Bash", "Bash(git status)", "", false) {
		t.Fatal("missing primary arg should not match an arg pattern")
	}
}

func TestMatchPattern_ArgPrefix(t *testing.T) {
	if !MatchPattern("Bash", "Bash(git:*)", "git push origin main", true) {
		t.Fatal("prefix pattern should match")
	}
	if MatchPattern("Bash", "Bash(git:*)", "npm install", true) {
		t.Fatal("non-matching prefix should not match")
	}
}

func TestMatchPattern_MalformedParen(t *testing.T) {
	if MatchPattern("Bash", "Bash(git:*", "git status", true) {
		t.Fatal("a pattern with ( but no matching ) must never match")
	}
}

func TestMatchPattern_DotBoundary(t *testing.T) {
	// mcp.<s>.* matches mcp.<s>.x and mcp.<s>.x.y but not mcp.<s>foo.x
	if !MatchPattern("mcp.echo.add", "mcp.echo.*", "", false) {
		t.Fatal("mcp.echo.* should match mcp.echo.add")
	}
	if !MatchPattern("mcp.echo.add.extra", "mcp.echo.*", "", false) {
		t.Fatal("mcp.echo.* should match mcp.echo.add.extra")
	}
	if MatchPattern("mcp.echofoo.add", "mcp.echo.*", "", false) {
		t.Fatal("mcp.echo.* must not match mcp.echofoo.add (dot boundary)")
	}
	if !MatchPattern("mcp.echo", "mcp.echo.*", "", false) {
		t.Fatal("mcp.echo.* should match the bare server-all name mcp.echo")
	}
}

func TestMatchPattern_McpWildcardAllServers(t *testing.T) {
	if !MatchPattern("mcp.git.status", "mcp.*", "", false) {
		t.Fatal("mcp.* should match any external tool")
	}
	if MatchPattern("Bash", "mcp.*", "", false) {
		t.Fatal("mcp.* must not match a built-in tool")
	}
}

func TestMatchAny(t *testing.T) {
	matched, rule := MatchAny([]string{"Read", "Bash(git:*)"}, "Bash", "git diff", true)
	if !matched || rule != "Bash(git:*)" {
		t.Fatalf("expected match on Bash(git:*), got matched=%v rule=%q", matched, rule)
	}
}
