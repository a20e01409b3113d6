package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/memman/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	calls atomic.Int32
	mu    sync.Mutex
	last  []string
}

func (r *recorder) Load() int32 { return r.calls.Load() }

func (r *recorder) lastChanged() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func startWatch(t *testing.T, dir string, debounce time.Duration) *recorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &recorder{}
	go Watch(ctx, dir, []string{"CLAUDE.md", "AGENTS.md"}, debounce, testutil.Logger(), func(changed []string) {
		rec.mu.Lock()
		rec.last = changed
		rec.mu.Unlock()
		rec.calls.Add(1)
	})
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatch_WriteTriggers(t *testing.T) {
	dir, fs := testutil.TestProject(t, map[string]string{"CLAUDE.md": "# Rules\n"})
	calls := startWatch(t, dir, 50*time.Millisecond)

	if err := fs.Write("CLAUDE.md", []byte("# Rules\n\n- new rule here\n")); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "write to primary did not trigger callback")
	if got := calls.lastChanged(); !slices.Equal(got, []string{"CLAUDE.md"}) {
		t.Errorf("changed = %v, want [CLAUDE.md]", got)
	}
}

func TestWatch_CreateTriggers(t *testing.T) {
	dir, _ := testutil.TestProject(t, nil)
	calls := startWatch(t, dir, 50*time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("# Agents\n"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "creating mirror did not trigger callback")
}

func TestWatch_Debounces(t *testing.T) {
	dir, _ := testutil.TestProject(t, map[string]string{"CLAUDE.md": "# Rules\n"})
	calls := startWatch(t, dir, 400*time.Millisecond)

	path := filepath.Join(dir, "CLAUDE.md")
	for i := 0; i < 5; i++ {
		_ = os.WriteFile(path, []byte("# Rules\n\n- edit "+string(rune('a'+i))+"\n"), 0o644)
		time.Sleep(10 * time.Millisecond)
	}
	_ = os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("# Agents\n"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "burst did not trigger callback")
	time.Sleep(600 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want one per burst", n)
	}
	if got := calls.lastChanged(); !slices.Equal(got, []string{"AGENTS.md", "CLAUDE.md"}) {
		t.Errorf("changed = %v, want both documents", got)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir, _ := testutil.TestProject(t, nil)
	calls := startWatch(t, dir, 50*time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Readme\n"), 0o644)
	time.Sleep(400 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("calls = %d, want 0 for unrelated file", n)
	}
}
