// Package tools implements the built-in ToolFn set: Read, Write, Edit,
// Patch, Grep, Glob, Bash. Each is an opaque ToolFn(args, root) -> Result
// from the dispatcher's point of view, sharing the same path-containment
// guard via internal/tools/fsroot.
package tools

import (
	"os"

	"github.com/jgarzik/yo/internal/tools/fsroot"
	"github.com/jgarzik/yo/internal/toolerr"
)

// ReadArgs is the argument shape for Read: {path}.
type ReadArgs struct {
	Path string `json:"path"`
}

// ReadResult is {path, content} on success.
type ReadResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Read resolves path within root and returns its contents.
func Read(root string, args ReadArgs) (ReadResult, *toolerr.Error) {
	resolved, err := (fsroot.Resolver{Root: root}).Resolve(args.Path)
	if err != nil {
		return ReadResult{}, asToolErr(err)
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		return ReadResult{}, toolerr.New(toolerr.CodeReadError, err.Error())
	}
	return ReadResult{Path: args.Path, Content: string(content)}, nil
}

func asToolErr(err error) *toolerr.Error {
	if te, ok := err.(*toolerr.Error); ok {
		return te
	}
	return toolerr.New(toolerr.CodePathOutOfScope, err.Error())
}
