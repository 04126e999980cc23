package tools

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jgarzik/yo/internal/toolerr"
)

// GrepArgs is the argument shape for Grep: {pattern, path?, glob?}. path
// and glob are optional scoping hints; when absent the whole root is
// searched.
type GrepArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Glob    string `json:"glob,omitempty"`
}

// GrepMatch is one matching line.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// GrepResult is the set of matches found.
type GrepResult struct {
	Matches []GrepMatch `json:"matches"`
}

// Grep scans text files under root (or under Path, if given) for regex
// Pattern, scoped to files matching Glob when provided.
func Grep(root string, args GrepArgs) (GrepResult, *toolerr.Error) {
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return GrepResult{}, toolerr.New(toolerr.CodeReadError, "invalid pattern: "+err.Error())
	}

	searchRoot := root
	if args.Path != "" {
		resolved, rerr := safeJoin(root, args.Path)
		if rerr != nil {
			return GrepResult{}, rerr
		}
		searchRoot = resolved
	}

	var result GrepResult
	walkErr := filepath.WalkDir(searchRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if args.Glob != "" {
			rel, _ := filepath.Rel(searchRoot, path)
			if ok, _ := filepath.Match(args.Glob, rel); !ok {
				if ok2, _ := filepath.Match(args.Glob, filepath.Base(path)); !ok2 {
					return nil
				}
			}
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if re.MatchString(line) {
				rel, _ := filepath.Rel(root, path)
				result.Matches = append(result.Matches, GrepMatch{Path: rel, Line: lineNo, Text: line})
			}
		}
		return nil
	})
	if walkErr != nil {
		return GrepResult{}, toolerr.New(toolerr.CodeReadError, walkErr.Error())
	}
	return result, nil
}

func safeJoin(root, rel string) (string, *toolerr.Error) {
	if strings.TrimSpace(rel) == "" || filepath.IsAbs(rel) {
		return "", toolerr.New(toolerr.CodePathOutOfScope, "invalid scoping path")
	}
	return filepath.Join(root, rel), nil
}
