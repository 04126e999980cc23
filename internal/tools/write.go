package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/jgarzik/yo/internal/tools/fsroot"
	"github.com/jgarzik/yo/internal/toolerr"
)

// WriteArgs is the argument shape for Write: {path, content}.
type WriteArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteResult is {path, bytes_written, sha256} on success.
type WriteResult struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytes_written"`
	SHA256       string `json:"sha256"`
}

// Write resolves path within root and writes content, creating parent
// directories as needed.
func Write(root string, args WriteArgs) (WriteResult, *toolerr.Error) {
	resolved, err := (fsroot.Resolver{Root: root}).Resolve(args.Path)
	if err != nil {
		return WriteResult{}, asToolErr(err)
	}
	if mkErr := os.MkdirAll(filepath.Dir(resolved), 0o755); mkErr != nil {
		return WriteResult{}, toolerr.New(toolerr.CodeWriteError, mkErr.Error())
	}
	if wErr := os.WriteFile(resolved, []byte(args.Content), 0o644); wErr != nil {
		return WriteResult{}, toolerr.New(toolerr.CodeWriteError, wErr.Error())
	}
	sum := sha256.Sum256([]byte(args.Content))
	return WriteResult{
		Path:         args.Path,
		BytesWritten: len(args.Content),
		SHA256:       hex.EncodeToString(sum[:]),
	}, nil
}
