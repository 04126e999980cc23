package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/jgarzik/yo/internal/tools/fsroot"
	"github.com/jgarzik/yo/internal/toolerr"
)

// EditOp is one {find, replace, count?} entry. Count=0 means replace
// all occurrences; Count>0 replaces up to that many; the default (field
// omitted) is 1.
type EditOp struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
	Count   *int   `json:"count,omitempty"`
}

// EditArgs is the argument shape for Edit: {path, edits}.
type EditArgs struct {
	Path  string   `json:"path"`
	Edits []EditOp `json:"edits"`
}

// EditResult is {path, applied, before_sha256, after_sha256} on success.
type EditResult struct {
	Path         string `json:"path"`
	Applied      int    `json:"applied"`
	BeforeSHA256 string `json:"before_sha256"`
	AfterSHA256  string `json:"after_sha256"`
}

// Edit resolves path within root and applies each edit in order,
// accumulating the total number of replacements performed.
func Edit(root string, args EditArgs) (EditResult, *toolerr.Error) {
	resolved, err := (fsroot.Resolver{Root: root}).Resolve(args.Path)
	if err != nil {
		return EditResult{}, asToolErr(err)
	}
	before, readErr := os.ReadFile(resolved)
	if readErr != nil {
		return EditResult{}, toolerr.New(toolerr.CodeReadError, readErr.Error())
	}

	content := string(before)
	beforeSum := sha256Hex(before)
	applied := 0

	for _, op := range args.Edits {
		n := 1
		if op.Count != nil {
			n = *op.Count
		}
		if n == 0 {
			count := strings.Count(content, op.Find)
			content = strings.ReplaceAll(content, op.Find, op.Replace)
			applied += count
		} else {
			replaced := replaceN(content, op.Find, op.Replace, n)
			applied += replaced.count
			content = replaced.text
		}
	}

	afterSum := sha256Hex([]byte(content))
	if content != string(before) {
		if wErr := os.WriteFile(resolved, []byte(content), 0o644); wErr != nil {
			return EditResult{}, toolerr.New(toolerr.CodeWriteError, wErr.Error())
		}
	}

	return EditResult{
		Path:         args.Path,
		Applied:      applied,
		BeforeSHA256: beforeSum,
		AfterSHA256:  afterSum,
	}, nil
}

type replacement struct {
	text  string
	count int
}

// replaceN replaces up to n occurrences of find with replace, left to
// right, without over-replacing like strings.Replace(s, old, new, n)
// would if find is empty.
func replaceN(s, find, replace string, n int) replacement {
	if find == "" || n <= 0 {
		return replacement{text: s, count: 0}
	}
	var sb strings.Builder
	count := 0
	rest := s
	for count < n {
		idx := strings.Index(rest, find)
		if idx < 0 {
			break
		}
		sb.WriteString(rest[:idx])
		sb.WriteString(replace)
		rest = rest[idx+len(find):]
		count++
	}
	sb.WriteString(rest)
	return replacement{text: sb.String(), count: count}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
