// Package syncer keeps the primary and mirror instruction documents in step.
//
// Each run parses both files, diffs their user-owned entries, and rewrites
// one managed region per direction in the destination document. Entries
// written to a document are persisted as memory entries, and the whole-file
// hashes of both sides are recorded so later runs can detect concurrent
// out-of-band edits.
package syncer

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/starford/memman/internal/apperr"
	"github.com/starford/memman/internal/correction"
	"github.com/starford/memman/internal/differ"
	"github.com/starford/memman/internal/hash"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/parser"
	"github.com/starford/memman/internal/storage"
)

// Managed region identifiers. Each names the side the entries came from.
const (
	IDFromPrimary = "from-primary"
	IDFromMirror  = "from-mirror"
)

// Repository is the persistence the engine needs.
type Repository interface {
	CreateEntry(e *models.MemoryEntry) error
	GetEntryByHash(fp string) (*models.MemoryEntry, error)
	UpdateEntry(e *models.MemoryEntry) error
	GetSyncState(sourcePath, targetPath string) (*models.SyncState, error)
	SetSyncState(s *models.SyncState) error
	UpdateSyncState(s *models.SyncState) error
}

// Config names the document pair and the default direction.
type Config struct {
	PrimaryPath string
	MirrorPath  string
	Direction   models.SyncDirection
	Scope       models.Scope
}

// Conflict is a modified entry pair where both files changed since the
// last sync. Resolution is left for a human.
type Conflict struct {
	Primary    string  `json:"primary"`
	Mirror     string  `json:"mirror"`
	Similarity float64 `json:"similarity"`
	Resolution string  `json:"resolution,omitempty"`
}

// Result reports one sync run.
type Result struct {
	Direction  models.SyncDirection `json:"direction"`
	DryRun     bool                 `json:"dry_run"`
	Added      int                  `json:"added"`
	Removed    int                  `json:"removed"`
	Modified   int                  `json:"modified"`
	Unchanged  int                  `json:"unchanged"`
	Pushed     int                  `json:"pushed"`
	Pulled     int                  `json:"pulled"`
	Skipped    int                  `json:"skipped"`
	Updated    int                  `json:"updated"`
	NewEntries int                  `json:"new_entries"`
	Conflicts  []Conflict           `json:"conflicts,omitempty"`
	Written    []string             `json:"written,omitempty"`
}

// Options adjust a single run.
type Options struct {
	DryRun bool
	// Direction overrides the configured direction when set.
	Direction models.SyncDirection
}

// Engine runs syncs. Runs are serialized.
type Engine struct {
	files  storage.Provider
	repo   Repository
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	toMirror  translator
	toPrimary translator

	mu sync.Mutex
}

// New builds an engine over the project files and the repository.
func New(files storage.Provider, repo Repository, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Direction == "" {
		cfg.Direction = models.DirBidirectional
	}
	if cfg.Scope.Kind == "" {
		cfg.Scope.Kind = models.ScopeProject
	}
	toMirror, toPrimary := translators(cfg.PrimaryPath, cfg.MirrorPath)
	return &Engine{
		files:     files,
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		toMirror:  toMirror,
		toPrimary: toPrimary,
	}
}

// Paths returns the primary and mirror document paths.
func (e *Engine) Paths() (primary, mirror string) {
	return e.cfg.PrimaryPath, e.cfg.MirrorPath
}

// side is one direction of a run: entries leaving src for dst.
type side struct {
	srcType, dstType models.DocType
	srcPath, dstPath string
	id               string
	internals        []string
	wrongWay         affinity
	tr               translator
}

// Sync performs one run.
func (e *Engine) Sync(opts Options) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dir := opts.Direction
	if dir == "" {
		dir = e.cfg.Direction
	}
	res := Result{Direction: dir, DryRun: opts.DryRun}

	primaryRaw, err := e.files.ReadOrEmpty(e.cfg.PrimaryPath)
	if err != nil {
		return res, fmt.Errorf("syncer: read primary: %w", err)
	}
	mirrorRaw, err := e.files.ReadOrEmpty(e.cfg.MirrorPath)
	if err != nil {
		return res, fmt.Errorf("syncer: read mirror: %w", err)
	}
	primary := parser.ParsePrimary(string(primaryRaw), e.cfg.PrimaryPath)
	mirror := parser.ParseMirror(string(mirrorRaw), e.cfg.MirrorPath)

	d := differ.Diff(primary.UnmanagedEntries(), mirror.UnmanagedEntries())
	res.Added, res.Removed = len(d.Added), len(d.Removed)
	res.Modified, res.Unchanged = len(d.Modified), len(d.Unchanged)

	state, err := e.repo.GetSyncState(e.cfg.PrimaryPath, e.cfg.MirrorPath)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return res, fmt.Errorf("syncer: load state: %w", err)
	}
	conflicted := make(map[int]bool)
	if dir == models.DirBidirectional && state != nil &&
		hash.File(primaryRaw) != state.SourceHash && hash.File(mirrorRaw) != state.TargetHash {
		for i, m := range d.Modified {
			conflicted[i] = true
			res.Conflicts = append(res.Conflicts, Conflict{
				Primary:    m.Source.Content,
				Mirror:     m.Target.Content,
				Similarity: m.Similarity,
			})
		}
	}
	res.Updated = len(d.Modified) - len(conflicted)

	if opts.DryRun {
		return res, nil
	}

	if dir.Outbound() {
		s := side{
			srcType: models.DocPrimary, dstType: models.DocMirror,
			srcPath: e.cfg.PrimaryPath, dstPath: e.cfg.MirrorPath,
			id: IDFromPrimary, internals: primaryInternals,
			wrongWay: affinityPrimary, tr: e.toMirror,
		}
		out, err := e.apply(s, d.Added, mirrorRaw, &res)
		if err != nil {
			return res, err
		}
		res.Pushed = out
	}
	if dir.Inbound() {
		s := side{
			srcType: models.DocMirror, dstType: models.DocPrimary,
			srcPath: e.cfg.MirrorPath, dstPath: e.cfg.PrimaryPath,
			id: IDFromMirror, internals: mirrorInternals,
			wrongWay: affinityMirror, tr: e.toPrimary,
		}
		in, err := e.apply(s, d.Removed, primaryRaw, &res)
		if err != nil {
			return res, err
		}
		res.Pulled = in
	}

	for i, m := range d.Modified {
		if conflicted[i] {
			continue
		}
		if err := e.trackModified(m); err != nil {
			return res, err
		}
	}

	if err := e.saveState(state, dir); err != nil {
		return res, err
	}
	e.logger.Info("sync complete",
		slog.String("direction", string(dir)),
		slog.Int("pushed", res.Pushed),
		slog.Int("pulled", res.Pulled),
		slog.Int("new_entries", res.NewEntries),
		slog.Int("conflicts", len(res.Conflicts)))
	return res, nil
}

// apply filters and translates entries, rewrites the destination's managed
// region, and persists the written entries. It returns how many entries the
// region holds.
func (e *Engine) apply(s side, entries []models.Entry, dstRaw []byte, res *Result) (int, error) {
	var (
		kept  []models.Entry
		texts []string
	)
	for _, en := range entries {
		if !eligible(en.Content, s.internals) {
			res.Skipped++
			continue
		}
		text := s.tr.apply(en.Content)
		if affinityOf(text) == s.wrongWay {
			res.Skipped++
			continue
		}
		kept = append(kept, en)
		texts = append(texts, text)
	}

	current := string(dstRaw)
	var updated string
	if len(texts) == 0 {
		updated = parser.RemoveManaged(current, s.id)
	} else {
		updated = parser.WriteManaged(current, s.id, "Synced from "+path.Base(s.srcPath), texts)
	}
	if updated != current {
		if err := e.files.Write(s.dstPath, []byte(updated)); err != nil {
			return 0, fmt.Errorf("syncer: write %s: %w", s.dstPath, err)
		}
		res.Written = append(res.Written, s.dstPath)
		e.logger.Debug("managed region written", slog.String("path", s.dstPath), slog.String("id", s.id))
	}

	for i, en := range kept {
		created, err := e.persist(s, en, texts[i])
		if err != nil {
			return 0, err
		}
		if created {
			res.NewEntries++
		}
	}
	return len(texts), nil
}

// persist records an entry written to s.dstPath. An entry with the same
// fingerprint is not duplicated; it only gains the sync target.
func (e *Engine) persist(s side, en models.Entry, written string) (bool, error) {
	target := models.SyncTarget{Type: s.dstType, Path: s.dstPath, Hash: hash.Fingerprint(written)}

	existing, err := e.repo.GetEntryByHash(hash.Fingerprint(en.Content))
	switch {
	case err == nil:
		if existing.HasTarget(s.dstPath) {
			return false, nil
		}
		existing.SyncTargets = append(existing.SyncTargets, target)
		if err := e.repo.UpdateEntry(existing); err != nil {
			return false, fmt.Errorf("syncer: update entry: %w", err)
		}
		return false, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return false, fmt.Errorf("syncer: lookup entry: %w", err)
	}

	m := &models.MemoryEntry{
		Content:     en.Content,
		Heading:     en.Heading,
		Level:       en.Level,
		Tags:        en.Tags,
		Paths:       en.Paths,
		Category:    categoryOf(en.Content),
		Scope:       e.cfg.Scope,
		Source:      models.Source{Type: s.srcType, Path: s.srcPath},
		SyncTargets: []models.SyncTarget{target},
	}
	if err := e.repo.CreateEntry(m); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("syncer: create entry: %w", err)
	}
	return true, nil
}

// trackModified refreshes the recorded mirror hash of a persisted entry
// whose mirror counterpart was edited. Document text is left alone.
func (e *Engine) trackModified(m differ.Modified) error {
	existing, err := e.repo.GetEntryByHash(hash.Fingerprint(m.Source.Content))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("syncer: lookup entry: %w", err)
	}
	fp := hash.Fingerprint(m.Target.Content)
	for i, t := range existing.SyncTargets {
		if t.Path != e.cfg.MirrorPath {
			continue
		}
		if t.Hash == fp {
			return nil
		}
		existing.SyncTargets[i].Hash = fp
		if err := e.repo.UpdateEntry(existing); err != nil {
			return fmt.Errorf("syncer: update entry: %w", err)
		}
		return nil
	}
	return nil
}

// saveState records the post-write whole-file hashes.
func (e *Engine) saveState(prev *models.SyncState, dir models.SyncDirection) error {
	primaryRaw, err := e.files.ReadOrEmpty(e.cfg.PrimaryPath)
	if err != nil {
		return fmt.Errorf("syncer: reread primary: %w", err)
	}
	mirrorRaw, err := e.files.ReadOrEmpty(e.cfg.MirrorPath)
	if err != nil {
		return fmt.Errorf("syncer: reread mirror: %w", err)
	}

	st := models.SyncState{
		SourcePath: e.cfg.PrimaryPath,
		TargetPath: e.cfg.MirrorPath,
		SourceHash: hash.File(primaryRaw),
		TargetHash: hash.File(mirrorRaw),
		Direction:  dir,
		LastSyncAt: e.now().UTC(),
	}
	if prev == nil {
		if err := e.repo.SetSyncState(&st); err != nil {
			return fmt.Errorf("syncer: save state: %w", err)
		}
		return nil
	}
	st.ID = prev.ID
	if err := e.repo.UpdateSyncState(&st); err != nil {
		return fmt.Errorf("syncer: save state: %w", err)
	}
	return nil
}

// categoryOf reuses the correction keyword table; text with no signal is
// general rather than a correction.
func categoryOf(content string) models.Category {
	c := correction.InferCategory(content)
	if c == models.CategoryCorrection {
		return models.CategoryGeneral
	}
	return c
}
