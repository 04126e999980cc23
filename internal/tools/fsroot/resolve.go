// Package fsroot implements the path containment invariant shared by
// every path-taking built-in tool: absolute paths are rejected outright;
// relative paths are joined to root, canonicalised if extant, and must
// not escape root via ".." or a symlink.
package fsroot

import (
	"path/filepath"
	"strings"

	"github.com/jgarzik/yo/internal/toolerr"
)

// Resolver resolves and validates workspace-relative paths against Root.
type Resolver struct {
	Root string
}

// Resolve returns the absolute, canonical path within the workspace root,
// or a path_out_of_scope error.
func (r Resolver) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "path is required")
	}

	// Unconditional absolute-path rejection: the spec requires this even
	// when an absolute path would resolve inside root, diverging from a
	// more permissive resolver that only checks the final location.
	if filepath.IsAbs(path) {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "absolute paths are not allowed")
	}

	root := r.Root
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "resolve workspace root: "+err.Error())
	}
	rootCanon, err := canonical(rootAbs)
	if err != nil {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "canonicalise workspace root: "+err.Error())
	}

	target := filepath.Join(rootAbs, path)
	targetCanon, err := canonical(target)
	if err != nil {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "canonicalise path: "+err.Error())
	}

	rel, err := filepath.Rel(rootCanon, targetCanon)
	if err != nil {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "path escapes workspace")
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "path escapes workspace")
	}

	return targetCanon, nil
}

// canonical resolves symlinks on the deepest existing ancestor of path so
// a symlink-escape is caught even when the final path component does not
// yet exist (e.g. a Write target).
func canonical(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	// Walk up to the deepest existing ancestor and resolve that; append
	// back the non-existent suffix unresolved.
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return path, nil
	}
	resolvedDir, derr := canonical(dir)
	if derr != nil {
		return "", derr
	}
	return filepath.Join(resolvedDir, base), nil
}
