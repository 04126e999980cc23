package tools

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jgarzik/yo/internal/tools/fsroot"
	"github.com/jgarzik/yo/internal/toolerr"
)

// PatchArgs is the argument shape for Patch: {patch, path?, dry_run?}.
type PatchArgs struct {
	Patch  string  `json:"patch"`
	Path   *string `json:"path,omitempty"`
	DryRun bool    `json:"dry_run,omitempty"`
}

// FilePatchResult describes the outcome of applying one file's hunks.
type FilePatchResult struct {
	Path          string `json:"path"`
	Status        string `json:"status"` // "modified" | "created"
	BeforeSHA256  string `json:"before_sha256"`
	AfterSHA256   string `json:"after_sha256"`
	HunksApplied  int    `json:"hunks_applied"`
}

// PatchResult is {success, dry_run, files_modified, files} on success.
type PatchResult struct {
	Success       bool              `json:"success"`
	DryRun        bool              `json:"dry_run"`
	FilesModified int               `json:"files_modified"`
	Files         []FilePatchResult `json:"files"`
}

type patchHunk struct {
	oldStart int
	lines    []string
}

type filePatch struct {
	path     string
	newFile  bool
	hunks    []patchHunk
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// stripGitPrefix removes a leading "a/" or "b/" git diff path prefix.
func stripGitPrefix(p string) string {
	if rest, ok := strings.CutPrefix(p, "a/"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(p, "b/"); ok {
		return rest
	}
	return p
}

func parseUnifiedDiff(patch string) ([]filePatch, *toolerr.Error) {
	lines := strings.Split(patch, "\n")
	var patches []filePatch
	var current *filePatch

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "--- "):
			oldHeader := strings.TrimSpace(strings.TrimPrefix(line, "--- "))
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, toolerr.New(toolerr.CodeInvalidPatch, "missing +++ header")
			}
			newHeader := strings.TrimSpace(strings.TrimPrefix(lines[i+1], "+++ "))
			newFile := oldHeader == "/dev/null"
			path := stripGitPrefix(newHeader)
			if newHeader == "/dev/null" {
				path = stripGitPrefix(oldHeader)
			}
			patches = append(patches, filePatch{path: path, newFile: newFile})
			current = &patches[len(patches)-1]
			i++
		case strings.HasPrefix(line, "@@ "):
			if current == nil {
				return nil, toolerr.New(toolerr.CodeInvalidPatch, "hunk without file header")
			}
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				return nil, toolerr.New(toolerr.CodeInvalidPatch, "malformed hunk header")
			}
			oldStart, _ := strconv.Atoi(m[1])
			current.hunks = append(current.hunks, patchHunk{oldStart: oldStart})
		default:
			if current == nil || len(current.hunks) == 0 {
				continue
			}
			if line == "" || line == "\\ No newline at end of file" {
				continue
			}
			h := &current.hunks[len(current.hunks)-1]
			h.lines = append(h.lines, line)
		}
	}

	if len(patches) == 0 {
		return nil, toolerr.New(toolerr.CodeInvalidPatch, "no file headers found")
	}
	return patches, nil
}

func applyHunks(content string, hunks []patchHunk) (string, int, *toolerr.Error) {
	hadTrailing := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var fileLines []string
	if trimmed != "" {
		fileLines = strings.Split(trimmed, "\n")
	}

	applied := 0
	for _, h := range hunks {
		idx := h.oldStart - 1
		if idx < 0 {
			idx = 0
		}
		for _, line := range h.lines {
			prefix := line[:1]
			text := ""
			if len(line) > 1 {
				text = line[1:]
			}
			switch prefix {
			case " ":
				if idx >= len(fileLines) || fileLines[idx] != text {
					return "", 0, toolerr.New(toolerr.CodeHunkFailed, "context mismatch")
				}
				idx++
			case "-":
				if idx >= len(fileLines) || fileLines[idx] != text {
					return "", 0, toolerr.New(toolerr.CodeHunkFailed, "delete mismatch")
				}
				fileLines = append(fileLines[:idx], fileLines[idx+1:]...)
			case "+":
				fileLines = append(fileLines[:idx], append([]string{text}, fileLines[idx:]...)...)
				idx++
			default:
				return "", 0, toolerr.New(toolerr.CodeInvalidPatch, fmt.Sprintf("invalid patch line: %q", line))
			}
		}
		applied++
	}

	result := strings.Join(fileLines, "\n")
	if hadTrailing || result == "" {
		result += "\n"
	}
	return result, applied, nil
}

// Patch applies a unified diff to one or more files. Git "a/"/"b/"
// prefixes are stripped; an old-side header of "/dev/null" creates a new
// file. With dry_run, file bytes are left unchanged.
func Patch(root string, args PatchArgs) (PatchResult, *toolerr.Error) {
	if strings.TrimSpace(args.Patch) == "" {
		return PatchResult{}, toolerr.New(toolerr.CodeInvalidPatch, "patch is required")
	}
	patches, perr := parseUnifiedDiff(args.Patch)
	if perr != nil {
		return PatchResult{}, perr
	}

	resolver := fsroot.Resolver{Root: root}
	var results []FilePatchResult
	modified := 0

	for _, p := range patches {
		targetPath := p.path
		if args.Path != nil {
			targetPath = *args.Path
		}
		resolved, rerr := resolver.Resolve(targetPath)
		if rerr != nil {
			return PatchResult{}, asToolErr(rerr)
		}

		var before []byte
		beforeSum := sha256Hex(nil)
		if !p.newFile {
			data, readErr := os.ReadFile(resolved)
			if readErr != nil {
				return PatchResult{}, toolerr.New(toolerr.CodeReadError, readErr.Error())
			}
			before = data
			beforeSum = sha256Hex(before)
		}

		after, applied, aerr := applyHunks(string(before), p.hunks)
		if aerr != nil {
			return PatchResult{}, aerr
		}
		afterSum := sha256Hex([]byte(after))

		status := "modified"
		if p.newFile {
			status = "created"
		}

		if !args.DryRun {
			if wErr := os.WriteFile(resolved, []byte(after), 0o644); wErr != nil {
				return PatchResult{}, toolerr.New(toolerr.CodeWriteError, wErr.Error())
			}
		}
		if !args.DryRun && beforeSum != afterSum {
			modified++
		}

		results = append(results, FilePatchResult{
			Path:         targetPath,
			Status:       status,
			BeforeSHA256: beforeSum,
			AfterSHA256:  afterSum,
			HunksApplied: applied,
		})
	}

	return PatchResult{
		Success:       true,
		DryRun:        args.DryRun,
		FilesModified: modified,
		Files:         results,
	}, nil
}
