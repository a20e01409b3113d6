package gitfiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/google/go-cmp/cmp"
)

func initRepo(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		abs := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(f); err != nil {
			t.Fatalf("Add %s: %v", f, err)
		}
	}
	return root
}

func TestOpen_TrackedFiles(t *testing.T) {
	root := initRepo(t, "src/api/handler.go", "web/App.vue", "README.md")
	// Untracked files are not part of the set.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if tr.Len() != 3 {
		t.Errorf("len = %d, want 3", tr.Len())
	}

	got := tr.Existing([]string{"**/*.vue", "src/api", "notes.txt", "lib/**", "src/api/"})
	want := []string{"**/*.vue", "src/api", "src/api/"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Existing mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_Subdirectory(t *testing.T) {
	root := initRepo(t, "app/src/main.go", "other/x.go")
	tr, err := Open(filepath.Join(root, "app"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := tr.Existing([]string{"src/*.go", "other/x.go"}); len(got) != 1 || got[0] != "src/*.go" {
		t.Errorf("Existing = %v", got)
	}
}

func TestOpen_NotRepository(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNotRepository) {
		t.Errorf("err = %v, want ErrNotRepository", err)
	}
}

func TestNew(t *testing.T) {
	tr := New([]string{"Dockerfile", "tests/unit/a_test.go"})
	got := tr.Existing([]string{"Dockerfile", "docker-compose*.yml", "tests/**", "./tests"})
	want := []string{"Dockerfile", "tests/**", "./tests"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Existing mismatch (-want +got):\n%s", diff)
	}
}
