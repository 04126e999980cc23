package tools

import (
	"context"
	"testing"
)

func TestBash_CapturesStdoutAndExitCode(t *testing.T) {
	dir := t.TempDir()
	res, terr := Bash(context.Background(), dir, BashArgs{Command: "echo hello"}, BashConfig{})
	if terr != nil {
		t.Fatal(terr)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
}

func TestBash_NonZeroExitIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	res, terr := Bash(context.Background(), dir, BashArgs{Command: "exit 3"}, BashConfig{})
	if terr != nil {
		t.Fatal(terr)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestBash_RunsInRoot(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "marker.txt", "present\n")
	res, terr := Bash(context.Background(), dir, BashArgs{Command: "cat marker.txt"}, BashConfig{})
	if terr != nil {
		t.Fatal(terr)
	}
	if res.Stdout != "present\n" {
		t.Fatalf("expected to read marker.txt from root, got %q", res.Stdout)
	}
}

func TestBash_OutputIsCapped(t *testing.T) {
	dir := t.TempDir()
	res, terr := Bash(context.Background(), dir, BashArgs{Command: "yes | head -c 1000"}, BashConfig{MaxOutputBytes: 10})
	if terr != nil {
		t.Fatal(terr)
	}
	if len(res.Stdout) > 10 {
		t.Fatalf("expected stdout capped at 10 bytes, got %d", len(res.Stdout))
	}
}
