// Package memservice is the application layer shared by the CLI, the
// status API, and the MCP server. It coordinates the project files, the
// store, the sync engine, the correction pipeline, and the scorers.
package memservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/memman/internal/correction"
	"github.com/starford/memman/internal/gitfiles"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/optimizer"
	"github.com/starford/memman/internal/parser"
	"github.com/starford/memman/internal/staleness"
	"github.com/starford/memman/internal/storage"
	"github.com/starford/memman/internal/store"
	"github.com/starford/memman/internal/syncer"
)

// Deps are the collaborators a Service coordinates.
type Deps struct {
	Files    storage.Provider // project root
	Memory   storage.Provider // per-project memory area; may be nil
	DB       store.Repository
	Engine   *syncer.Engine
	Pipeline *correction.Pipeline
	RulesDir string
	Logger   *slog.Logger
}

// Service coordinates storage, persistence, and the engines.
type Service struct {
	files    storage.Provider
	memory   storage.Provider
	db       store.Repository
	engine   *syncer.Engine
	pipeline *correction.Pipeline
	rulesDir string
	logger   *slog.Logger
	now      func() time.Time
	onSync   func(syncer.Result)
}

// Option configures a Service.
type Option func(*Service)

// WithSyncHook registers fn to run after every non-dry-run sync.
func WithSyncHook(fn func(syncer.Result)) Option {
	return func(s *Service) { s.onSync = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new service.
func NewService(d Deps, opts ...Option) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		files:    d.Files,
		memory:   d.Memory,
		db:       d.DB,
		engine:   d.Engine,
		pipeline: d.Pipeline,
		rulesDir: d.RulesDir,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs the sync engine. An empty direction uses the configured one.
func (s *Service) Sync(_ context.Context, dryRun bool, dir models.SyncDirection) (syncer.Result, error) {
	res, err := s.engine.Sync(syncer.Options{DryRun: dryRun, Direction: dir})
	if err != nil {
		return res, err
	}
	if !dryRun && s.onSync != nil {
		s.onSync(res)
	}
	return res, nil
}

// OptimizeReport pairs the plan with the files it wrote.
type OptimizeReport struct {
	Plan   optimizer.Plan   `json:"plan"`
	Result optimizer.Result `json:"result"`
}

// Optimize splits the primary document into always-loaded content, rule
// files, and memory notes. Without dryRun the primary is overwritten.
func (s *Service) Optimize(_ context.Context, dryRun bool) (OptimizeReport, error) {
	primaryPath, _ := s.engine.Paths()
	data, err := s.files.Read(primaryPath)
	if err != nil {
		return OptimizeReport{}, fmt.Errorf("memservice: read primary: %w", err)
	}
	plan := optimizer.BuildPlan(parser.ParsePrimary(string(data), primaryPath))
	existing, err := s.previousSplit(plan)
	if err != nil {
		return OptimizeReport{Plan: plan}, err
	}
	plan = optimizer.MergeExisting(plan, s.rulesDir, existing)
	res, err := optimizer.Execute(plan, optimizer.Target{
		Project:     s.files,
		PrimaryPath: primaryPath,
		RulesDir:    s.rulesDir,
		Memory:      s.memory,
	}, dryRun)
	if err != nil {
		return OptimizeReport{Plan: plan}, err
	}
	s.logger.Info("optimize complete",
		slog.Bool("dry_run", dryRun),
		slog.Int("rules", len(res.Rules)),
		slog.Int("original_tokens", plan.OriginalTokens),
		slog.Int("optimized_tokens", plan.OptimizedTokens))
	return OptimizeReport{Plan: plan, Result: res}, nil
}

// previousSplit loads the rule files and topic notes an earlier optimize
// wrote, so a second run extends them.
func (s *Service) previousSplit(plan optimizer.Plan) (optimizer.Existing, error) {
	rules, err := parser.ScanRules(s.files, s.rulesDir)
	if err != nil {
		return optimizer.Existing{}, fmt.Errorf("memservice: %w", err)
	}
	ex := optimizer.Existing{Rules: rules, Notes: make(map[string]models.Document)}
	if s.memory == nil {
		return ex, nil
	}
	for _, t := range plan.Topics {
		name := t.Name + ".md"
		data, err := s.memory.ReadOrEmpty(name)
		if err != nil {
			return optimizer.Existing{}, fmt.Errorf("memservice: read note %s: %w", name, err)
		}
		if len(data) > 0 {
			ex.Notes[t.Name] = parser.Parse(string(data), models.DocMemoryNote, name)
		}
	}
	return ex, nil
}

// CaptureTranscript runs batch correction detection over a transcript.
func (s *Service) CaptureTranscript(ctx context.Context, transcript, sessionID string) (correction.Report, error) {
	return s.pipeline.Batch(ctx, transcript, sessionID)
}

// CaptureEdit runs edit-level correction detection for one file edit.
func (s *Service) CaptureEdit(_ context.Context, path, oldContent, newContent, sessionID string) (correction.Report, error) {
	return s.pipeline.Edit(path, oldContent, newContent, sessionID)
}

// RecordInput is a manually supplied correction.
type RecordInput struct {
	Incorrect  string               `json:"incorrect"`
	Correct    string               `json:"correct"`
	Category   models.Category      `json:"category,omitempty"`
	Paths      []string             `json:"paths,omitempty"`
	Source     models.SourceChannel `json:"source"`
	Confidence float64              `json:"confidence"`
	SessionID  string               `json:"session_id,omitempty"`
}

// RecordCorrection persists a manual or protocol-tool correction. Manual
// corrections without a confidence are trusted fully.
func (s *Service) RecordCorrection(_ context.Context, in RecordInput) (correction.Recorded, error) {
	origin := correction.OriginManual
	if in.Source == models.SourceProtocol {
		origin = correction.OriginProtocol
	}
	conf := in.Confidence
	if conf == 0 {
		conf = 1
	}
	return s.pipeline.Record(correction.Candidate{
		Origin:     origin,
		Incorrect:  in.Incorrect,
		Correct:    in.Correct,
		Category:   in.Category,
		Paths:      in.Paths,
		Confidence: conf,
	}, in.SessionID)
}

// Scored is the staleness result for one entry.
type Scored struct {
	ID             string                   `json:"id"`
	Content        string                   `json:"content"`
	Score          float64                  `json:"score"`
	Recommendation staleness.Recommendation `json:"recommendation"`
}

// Rescore scores every persisted entry. Paths are checked against the git
// index when the project is a repository. With apply, scores are stored.
func (s *Service) Rescore(_ context.Context, apply bool) ([]Scored, error) {
	entries, err := s.db.ListEntries(store.EntryFilter{})
	if err != nil {
		return nil, err
	}
	oracle := s.fileOracle()
	now := s.now().UTC()
	since := now.Add(-staleness.RecentWindow)

	out := make([]Scored, 0, len(entries))
	for _, e := range entries {
		recent, err := s.db.UsesSince(e.ID, since)
		if err != nil {
			return out, err
		}
		score := staleness.Score(staleness.FromEntry(e, recent), now, oracle)
		out = append(out, Scored{
			ID:             e.ID,
			Content:        e.Content,
			Score:          score,
			Recommendation: staleness.Recommend(score),
		})
		if apply {
			if err := s.db.SetStaleness(e.ID, score); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func (s *Service) fileOracle() staleness.FileOracle {
	tracked, err := gitfiles.Open(s.files.Root())
	if errors.Is(err, gitfiles.ErrNotRepository) {
		return nil
	}
	if err != nil {
		s.logger.Warn("file oracle unavailable", slog.String("error", err.Error()))
		return nil
	}
	return tracked
}

// Stats summarizes the store.
type Stats struct {
	Entries     int                     `json:"entries"`
	Corrections int                     `json:"corrections"`
	Categories  map[models.Category]int `json:"categories"`
	SyncStates  []models.SyncState      `json:"sync_states"`
}

// Stats returns entry and correction counts with the category distribution.
func (s *Service) Stats(_ context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Entries, err = s.db.CountEntries(); err != nil {
		return st, err
	}
	if st.Categories, err = s.db.CategoryDistribution(); err != nil {
		return st, err
	}
	corrections, err := s.db.ListCorrections(store.CorrectionFilter{})
	if err != nil {
		return st, err
	}
	st.Corrections = len(corrections)
	states, err := s.db.ListSyncStates()
	if err != nil {
		return st, err
	}
	st.SyncStates = nonNilSlice(states)
	return st, nil
}

// ListEntries returns persisted entries.
func (s *Service) ListEntries(_ context.Context, f store.EntryFilter) ([]models.MemoryEntry, error) {
	entries, err := s.db.ListEntries(f)
	return nonNilSlice(entries), err
}

// SearchEntries runs a full-text search over persisted entries.
func (s *Service) SearchEntries(_ context.Context, query string, limit int) ([]models.MemoryEntry, error) {
	entries, err := s.db.SearchEntries(query, limit)
	return nonNilSlice(entries), err
}

// GetEntry returns one entry.
func (s *Service) GetEntry(_ context.Context, id string) (*models.MemoryEntry, error) {
	return s.db.GetEntry(id)
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(_ context.Context, id string) error {
	return s.db.DeleteEntry(id)
}

// UseEntry records that an entry was used.
func (s *Service) UseEntry(_ context.Context, id, useContext string) error {
	return s.db.IncrementUse(id, useContext)
}

// ListCorrections returns persisted corrections, newest first.
func (s *Service) ListCorrections(_ context.Context, f store.CorrectionFilter) ([]models.Correction, error) {
	cs, err := s.db.ListCorrections(f)
	return nonNilSlice(cs), err
}

// SyncStates returns every sync state record.
func (s *Service) SyncStates(_ context.Context) ([]models.SyncState, error) {
	states, err := s.db.ListSyncStates()
	return nonNilSlice(states), err
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
