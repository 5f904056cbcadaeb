package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSourceID(t *testing.T) {
	id1, err := SourceID("/inbox/report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := SourceID("/inbox/./report.pdf")
	id3, _ := SourceID("/inbox/other.pdf")

	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+32 {
		t.Errorf("unexpected ID length: %q", id1)
	}
	if id1 != id2 {
		t.Errorf("equivalent paths should match: %q vs %q", id1, id2)
	}
	if id1 == id3 {
		t.Errorf("different paths should give different IDs: %q", id1)
	}
}

func TestSourceID_relativeResolved(t *testing.T) {
	abs, err := filepath.Abs("doc.docx")
	if err != nil {
		t.Fatal(err)
	}
	rel, _ := SourceID("doc.docx")
	full, _ := SourceID(abs)
	if rel != full {
		t.Errorf("relative and absolute forms differ: %q vs %q", rel, full)
	}
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(path, []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	fp, err := Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fp.Size != 5 || fp.Mtime != mtime.UnixNano() || fp.Path != path {
		t.Errorf("got %+v", fp)
	}
	if !fp.Matches(mtime.UnixNano(), 5) {
		t.Error("Matches should be true for same mtime and size")
	}
	if fp.Matches(mtime.UnixNano(), 6) {
		t.Error("Matches should be false for a different size")
	}

	if _, err := Stat(dir); err == nil {
		t.Error("Stat on a directory should fail")
	}
	if _, err := Stat(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("Stat on a missing file should fail")
	}
}
