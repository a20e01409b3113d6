// Package gitfiles answers whether path patterns match any file tracked in
// the git repository that contains a project.
package gitfiles

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned by Open when the project is not inside a
// git working tree.
var ErrNotRepository = errors.New("gitfiles: not a git repository")

// Tracked is a snapshot of the tracked file set, with paths relative to
// the project root.
type Tracked struct {
	files []string
}

// Open reads the git index of the repository containing projectRoot.
// Files outside projectRoot are dropped.
func Open(projectRoot string) (*Tracked, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("gitfiles: resolve root: %w", err)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotRepository
	}
	if err != nil {
		return nil, fmt.Errorf("gitfiles: open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("gitfiles: worktree: %w", err)
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("gitfiles: read index: %w", err)
	}

	prefix, err := filepath.Rel(wt.Filesystem.Root(), abs)
	if err != nil {
		return nil, fmt.Errorf("gitfiles: relative root: %w", err)
	}
	prefix = filepath.ToSlash(prefix)
	if prefix == "." {
		prefix = ""
	} else {
		prefix += "/"
	}

	t := &Tracked{files: make([]string, 0, len(idx.Entries))}
	for _, e := range idx.Entries {
		name := filepath.ToSlash(e.Name)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		t.files = append(t.files, strings.TrimPrefix(name, prefix))
	}
	return t, nil
}

// New builds a snapshot from an explicit file list.
func New(files []string) *Tracked {
	return &Tracked{files: append([]string(nil), files...)}
}

// Len is the number of tracked files.
func (t *Tracked) Len() int { return len(t.files) }

// Existing returns the patterns that match at least one tracked file, in
// input order. A pattern also matches as a directory prefix, so "src/api"
// matches "src/api/handler.go".
func (t *Tracked) Existing(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if t.matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func (t *Tracked) matches(pattern string) bool {
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return false
	}
	dir := pattern
	if !strings.HasSuffix(pattern, "/**") {
		dir = pattern + "/**"
	}
	for _, f := range t.files {
		if ok, _ := doublestar.Match(pattern, f); ok {
			return true
		}
		if ok, _ := doublestar.Match(dir, f); ok {
			return true
		}
	}
	return false
}
