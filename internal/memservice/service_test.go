package memservice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/starford/memman/internal/correction"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/staleness"
	"github.com/starford/memman/internal/storage"
	"github.com/starford/memman/internal/store"
	"github.com/starford/memman/internal/syncer"
	"github.com/starford/memman/internal/testutil"
)

const primaryDoc = `# Project

- Never commit .env files to git
- Use Vue 3 composition API for all components
- Run docker compose up before the integration suite
`

func testService(t *testing.T, opts ...Option) (*Service, *storage.FS, *store.DB) {
	t.Helper()
	_, files := testutil.TestProject(t, map[string]string{"CLAUDE.md": primaryDoc})
	memory, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)
	logger := testutil.Logger()
	engine := syncer.New(files, db, syncer.Config{PrimaryPath: "CLAUDE.md", MirrorPath: "AGENTS.md"}, logger)
	pipeline := correction.NewPipeline(db, nil, correction.DefaultConfig(), logger)
	svc := NewService(Deps{
		Files:    files,
		Memory:   memory,
		DB:       db,
		Engine:   engine,
		Pipeline: pipeline,
		RulesDir: ".claude/rules",
		Logger:   logger,
	}, opts...)
	return svc, files, db
}

func TestSync_HookRunsOnRealSyncOnly(t *testing.T) {
	var hooked []syncer.Result
	svc, files, _ := testService(t, WithSyncHook(func(r syncer.Result) { hooked = append(hooked, r) }))
	ctx := context.Background()

	if _, err := svc.Sync(ctx, true, ""); err != nil {
		t.Fatal(err)
	}
	if len(hooked) != 0 {
		t.Errorf("hook ran on dry run")
	}
	res, err := svc.Sync(ctx, false, models.DirPrimaryToMirror)
	if err != nil {
		t.Fatal(err)
	}
	if len(hooked) != 1 || res.Pushed != 3 {
		t.Errorf("hooked=%d pushed=%d", len(hooked), res.Pushed)
	}
	if !files.Exists("AGENTS.md") {
		t.Error("mirror not written")
	}
}

func TestOptimize(t *testing.T) {
	svc, files, _ := testService(t)
	ctx := context.Background()

	rep, err := svc.Optimize(ctx, true)
	if err != nil {
		t.Fatalf("Optimize dry run: %v", err)
	}
	if len(rep.Result.Rules) == 0 {
		t.Fatalf("no rule files planned: %+v", rep.Result)
	}
	if data, _ := files.Read("CLAUDE.md"); string(data) != primaryDoc {
		t.Error("dry run rewrote the primary")
	}

	if _, err := svc.Optimize(ctx, false); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	data, _ := files.Read("CLAUDE.md")
	if !strings.Contains(string(data), "Never commit .env files") || strings.Contains(string(data), "Vue 3") {
		t.Errorf("primary after optimize:\n%s", data)
	}
	if !files.Exists(".claude/rules/vue.md") {
		t.Error("vue rule not written")
	}
}

func TestOptimize_SecondRunKeepsEarlierSplit(t *testing.T) {
	svc, files, _ := testService(t)
	ctx := context.Background()

	first := "- Never commit .env files to git\n- Use Vue 3 composition API for all components\n- " +
		"The project moved from a hand-rolled build script to the current setup after the old release process kept breaking, and several of the old flags are still referenced in older branches that nobody maintains anymore.\n"
	second := "- Never commit .env files to git\n- Keep .vue files under 300 lines\n- " +
		"Before the rewrite the team kept a long list of manual steps in a shared document, which drifted out of date so often that nobody trusted it, and most of those steps were later folded into the make targets that every contributor runs today.\n"

	for i, doc := range []string{first, second} {
		if err := files.Write("CLAUDE.md", []byte(doc)); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Optimize(ctx, false); err != nil {
			t.Fatalf("Optimize run %d: %v", i+1, err)
		}
	}

	data, err := files.Read(".claude/rules/vue.md")
	if err != nil {
		t.Fatalf("read vue rule: %v", err)
	}
	rule := string(data)
	for _, want := range []string{"- Use Vue 3 composition API for all components", "- Keep .vue files under 300 lines"} {
		if !strings.Contains(rule, want) {
			t.Errorf("vue rule missing %q:\n%s", want, rule)
		}
	}

	note, err := svc.memory.Read("historical.md")
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if !strings.Contains(string(note), "hand-rolled build script") || !strings.Contains(string(note), "manual steps") {
		t.Errorf("historical note lost earlier entries:\n%s", note)
	}

	// A third run over the same primary changes nothing.
	if _, err := svc.Optimize(ctx, false); err != nil {
		t.Fatal(err)
	}
	again, _ := files.Read(".claude/rules/vue.md")
	if string(again) != rule {
		t.Errorf("third run changed the rule:\n%s", again)
	}
}

func TestRecordCorrectionAndStats(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	rec, err := svc.RecordCorrection(ctx, RecordInput{
		Incorrect: "jest",
		Correct:   "Use vitest for unit tests",
		Source:    models.SourceProtocol,
	})
	if err != nil {
		t.Fatalf("RecordCorrection: %v", err)
	}
	if rec.Correction.Source != models.SourceProtocol || rec.Correction.Confidence != 1 || rec.EntryID == "" {
		t.Errorf("recorded = %+v", rec)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 1 || st.Corrections != 1 || st.Categories[models.CategoryTesting] != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.SyncStates == nil {
		t.Error("sync states should be an empty list, not nil")
	}
}

func TestRescore(t *testing.T) {
	later := time.Now().Add(800 * 24 * time.Hour)
	svc, _, db := testService(t, WithClock(func() time.Time { return later }))
	ctx := context.Background()

	e := &models.MemoryEntry{Content: "Use the legacy build script"}
	if err := db.CreateEntry(e); err != nil {
		t.Fatal(err)
	}
	if err := svc.UseEntry(ctx, e.ID, "test"); err != nil {
		t.Fatal(err)
	}

	scores, err := svc.Rescore(ctx, false)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if len(scores) != 1 || scores[0].Recommendation != staleness.Delete {
		t.Fatalf("scores = %+v", scores)
	}
	if got, _ := db.GetEntry(e.ID); got.Staleness != 0 {
		t.Errorf("staleness persisted without apply: %v", got.Staleness)
	}

	if _, err := svc.Rescore(ctx, true); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetEntry(e.ID)
	if got.Staleness != scores[0].Score {
		t.Errorf("staleness = %v, want %v", got.Staleness, scores[0].Score)
	}
}
