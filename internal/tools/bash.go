package tools

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/jgarzik/yo/internal/toolerr"
)

// BashConfig bounds a Bash invocation; the dispatcher supplies it from
// session configuration ("bash_config").
type BashConfig struct {
	TimeoutMs     int
	MaxOutputBytes int
}

func (c BashConfig) timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c BashConfig) maxOutput() int {
	if c.MaxOutputBytes <= 0 {
		return 64_000
	}
	return c.MaxOutputBytes
}

// BashArgs is the argument shape for Bash: {command}.
type BashArgs struct {
	Command string `json:"command"`
}

// BashResult is the stdout/stderr/exit_code success body.
type BashResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// limitedBuffer caps how many bytes it retains, discarding the overflow
// while still reporting the true written length to the writer.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.max - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Bash runs command via /bin/sh -c, rooted at root, bounded by cfg's
// timeout and output cap. Policy-level command filtering happens before
// dispatch (§4.2); this tool trusts what it is given.
func Bash(ctx context.Context, root string, args BashArgs, cfg BashConfig) (BashResult, *toolerr.Error) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", args.Command)
	cmd.Dir = root

	stdout := &limitedBuffer{max: cfg.maxOutput()}
	stderr := &limitedBuffer{max: cfg.maxOutput()}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return BashResult{}, toolerr.New(toolerr.CodeWriteError, "command failed to start: "+err.Error())
		}
	}

	return BashResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code}, nil
}
