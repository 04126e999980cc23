package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Edit idempotence testable property: if find does not occur,
// before_sha256 == after_sha256 and applied == 0.
func TestEdit_IdempotentWhenFindAbsent(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "hello world")

	res, terr := Edit(dir, EditArgs{Path: "a.txt", Edits: []EditOp{{Find: "nope", Replace: "x"}}})
	if terr != nil {
		t.Fatal(terr)
	}
	if res.Applied != 0 {
		t.Fatalf("expected applied=0, got %d", res.Applied)
	}
	if res.BeforeSHA256 != res.AfterSHA256 {
		t.Fatal("expected before/after hashes to match when find is absent")
	}
}

func TestEdit_DefaultCountReplacesOne(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "aaa")

	res, terr := Edit(dir, EditArgs{Path: "a.txt", Edits: []EditOp{{Find: "a", Replace: "b"}}})
	if terr != nil {
		t.Fatal(terr)
	}
	if res.Applied != 1 {
		t.Fatalf("expected 1 replacement by default, got %d", res.Applied)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(got) != "baa" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestEdit_CountZeroReplacesAll(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "aaa")
	zero := 0

	res, terr := Edit(dir, EditArgs{Path: "a.txt", Edits: []EditOp{{Find: "a", Replace: "b", Count: &zero}}})
	if terr != nil {
		t.Fatal(terr)
	}
	if res.Applied != 3 {
		t.Fatalf("expected 3 replacements, got %d", res.Applied)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(got) != "bbb" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestEdit_CountNReplacesUpToN(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "aaaa")
	two := 2

	res, terr := Edit(dir, EditArgs{Path: "a.txt", Edits: []EditOp{{Find: "a", Replace: "b", Count: &two}}})
	if terr != nil {
		t.Fatal(terr)
	}
	if res.Applied != 2 {
		t.Fatalf("expected 2 replacements, got %d", res.Applied)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	if string(got) != "bbaa" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestEdit_RejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	_, terr := Edit(dir, EditArgs{Path: "../escape.txt", Edits: []EditOp{{Find: "a", Replace: "b"}}})
	if terr == nil {
		t.Fatal("expected path_out_of_scope error")
	}
}
