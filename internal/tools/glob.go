package tools

import (
	"os"
	"path/filepath"

	"github.com/jgarzik/yo/internal/toolerr"
)

// GlobArgs is the argument shape for Glob: {pattern}. Pattern is matched
// against paths relative to root using filepath.Match semantics per path
// segment, walking the tree to support "**"-free recursive patterns the
// way filepath.Glob would from root.
type GlobArgs struct {
	Pattern string `json:"pattern"`
}

// GlobResult is the set of matching relative paths.
type GlobResult struct {
	Paths []string `json:"paths"`
}

// Glob returns every file under root whose root-relative path matches
// Pattern.
func Glob(root string, args GlobArgs) (GlobResult, *toolerr.Error) {
	var result GlobResult
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if ok, _ := filepath.Match(args.Pattern, rel); ok {
			result.Paths = append(result.Paths, rel)
			return nil
		}
		if ok, _ := filepath.Match(args.Pattern, filepath.Base(rel)); ok {
			result.Paths = append(result.Paths, rel)
		}
		return nil
	})
	if err != nil {
		return GlobResult{}, toolerr.New(toolerr.CodeReadError, err.Error())
	}
	return result, nil
}
