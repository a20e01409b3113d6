package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# Rules\n- Use pnpm\n")
	if err := s.Write("CLAUDE.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("CLAUDE.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write(".claude/rules/testing.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Exists(".claude/rules/testing.md") {
		t.Error("written file should exist")
	}
}

func TestReadOrEmpty_Missing(t *testing.T) {
	s := tempRoot(t)
	got, err := s.ReadOrEmpty("AGENTS.md")
	if err != nil {
		t.Fatalf("ReadOrEmpty: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty content, got %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("del.md") {
		t.Error("deleted file still exists")
	}
}

func TestList(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("rules/a.md", []byte("a"))
	_ = s.Write("rules/sub/b.md", []byte("b"))
	_ = s.Write("rules/readme.txt", []byte("not md"))

	items, err := s.List("rules")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("missing checksum for %s", it.Path)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/passwd"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("Read(%q) should fail", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", p)
		}
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.md", []byte("a"))
	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".md" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestEnsureFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	fs, err := EnsureFS(dir)
	if err != nil {
		t.Fatalf("EnsureFS: %v", err)
	}
	if fs.Root() == "" {
		t.Error("empty root")
	}
}
