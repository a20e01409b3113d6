package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/memman/internal/apperr"
	"github.com/starford/memman/internal/hash"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/parser"
	"github.com/starford/memman/internal/store"
)

// Repository is the persistence the pipeline needs.
type Repository interface {
	CreateCorrection(c *models.Correction) error
	GetCorrectionByHash(hash string) (*models.Correction, error)
	ListCorrections(f store.CorrectionFilter) ([]models.Correction, error)
	LinkCorrection(id int64, entryID string) error
	CreateEntry(e *models.MemoryEntry) error
	GetEntryByHash(fp string) (*models.MemoryEntry, error)
}

// Config tunes the pipeline.
type Config struct {
	Model            string
	WindowChars      int
	PromoteThreshold float64
	EditThreshold    float64
	Scope            models.Scope
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		WindowChars:      DefaultWindow,
		PromoteThreshold: 0.7,
		EditThreshold:    0.4,
		Scope:            models.Scope{Kind: models.ScopeProject},
	}
}

// Pipeline composes detection, classification, flip-flop checks, and
// persistence. The oracle is optional.
type Pipeline struct {
	repo   Repository
	oracle Extractor
	cfg    Config
	logger *slog.Logger
}

// NewPipeline builds a pipeline. oracle may be nil.
func NewPipeline(repo Repository, oracle Extractor, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{repo: repo, oracle: oracle, cfg: cfg, logger: logger}
}

// Recorded is the outcome for one candidate.
type Recorded struct {
	Correction models.Correction `json:"correction"`
	FlipFlop   bool              `json:"flip_flop"`
	Duplicate  bool              `json:"duplicate"`
	EntryID    string            `json:"entry_id,omitempty"`
}

// Report summarizes one pipeline run.
type Report struct {
	PatternCandidates int        `json:"pattern_candidates"`
	OracleCandidates  int        `json:"oracle_candidates"`
	OracleError       string     `json:"oracle_error,omitempty"`
	Recorded          []Recorded `json:"recorded"`
}

// Promoted counts recorded corrections that produced a memory entry.
func (r Report) Promoted() int {
	n := 0
	for _, rec := range r.Recorded {
		if rec.EntryID != "" && !rec.Duplicate {
			n++
		}
	}
	return n
}

// Batch processes a whole session transcript: pattern detection, the
// oracle when configured, merge, classification, and persistence. Oracle
// failure is logged and the run continues with pattern results.
func (p *Pipeline) Batch(ctx context.Context, transcript, sessionID string) (Report, error) {
	var rep Report
	pattern := DetectPatterns(transcript)
	rep.PatternCandidates = len(pattern)

	var oracle []Candidate
	if p.oracle != nil {
		res, err := p.oracle.Extract(ctx, Window(transcript, p.cfg.WindowChars), p.cfg.Model)
		if err != nil {
			p.logger.Warn("correction: oracle failed, using patterns only", slog.String("error", err.Error()))
			rep.OracleError = err.Error()
		} else {
			oracle = res
		}
	}
	rep.OracleCandidates = len(oracle)

	recorded, err := p.persist(ClassifyAll(Merge(pattern, oracle)), sessionID)
	rep.Recorded = recorded
	return rep, err
}

// Edit processes one file edit. Only edit-level detection runs; candidates
// below the edit threshold are dropped. The edited path is the fallback
// path scope.
func (p *Pipeline) Edit(filePath, oldContent, newContent, sessionID string) (Report, error) {
	var cands []Candidate
	for _, c := range DetectEdit(oldContent, newContent) {
		if c.Confidence < p.cfg.EditThreshold {
			continue
		}
		c = Classify(c)
		if len(c.Paths) == 0 && filePath != "" {
			c.Paths = []string{filePath}
		}
		cands = append(cands, c)
	}
	rep := Report{PatternCandidates: len(cands)}
	recorded, err := p.persist(cands, sessionID)
	rep.Recorded = recorded
	return rep, err
}

// Record persists a single manually supplied candidate.
func (p *Pipeline) Record(c Candidate, sessionID string) (Recorded, error) {
	if c.Correct == "" {
		return Recorded{}, fmt.Errorf("correction: correct text is required")
	}
	recorded, err := p.persist([]Candidate{Classify(c)}, sessionID)
	if err != nil {
		return Recorded{}, err
	}
	return recorded[0], nil
}

func (p *Pipeline) persist(cands []Candidate, sessionID string) ([]Recorded, error) {
	if len(cands) == 0 {
		return nil, nil
	}
	history, err := p.repo.ListCorrections(store.CorrectionFilter{})
	if err != nil {
		return nil, fmt.Errorf("correction: load history: %w", err)
	}

	var out []Recorded
	for _, c := range cands {
		h := hash.Pair(c.Incorrect, c.Correct)
		existing, err := p.repo.GetCorrectionByHash(h)
		if err == nil {
			out = append(out, Recorded{Correction: *existing, Duplicate: true, EntryID: existing.MemoryEntryID})
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return out, fmt.Errorf("correction: lookup: %w", err)
		}

		rec := Recorded{FlipFlop: IsFlipFlop(c, history)}
		rec.Correction = models.Correction{
			Incorrect:  c.Incorrect,
			Correct:    c.Correct,
			Category:   c.Category,
			Paths:      c.Paths,
			Confidence: c.Confidence,
			Source:     c.Source(),
			SessionID:  sessionID,
			Hash:       h,
		}
		if err := p.repo.CreateCorrection(&rec.Correction); err != nil {
			if errors.Is(err, apperr.ErrAlreadyExists) {
				rec.Duplicate = true
				out = append(out, rec)
				continue
			}
			return out, fmt.Errorf("correction: record: %w", err)
		}
		history = append(history, rec.Correction)
		if rec.FlipFlop {
			p.logger.Info("correction: flip-flop recorded, not promoted",
				slog.String("incorrect", c.Incorrect), slog.String("correct", c.Correct))
		}

		if c.Confidence >= p.cfg.PromoteThreshold && !rec.FlipFlop {
			id, err := p.promote(c, rec.Correction.ID)
			if err != nil {
				return out, err
			}
			rec.EntryID = id
			rec.Correction.MemoryEntryID = id
		}
		out = append(out, rec)
	}
	return out, nil
}

// promote creates the memory entry for a confident correction and links
// it. An entry with the same text is reused.
func (p *Pipeline) promote(c Candidate, correctionID int64) (string, error) {
	text := c.Text()
	entry := &models.MemoryEntry{
		Content:  text,
		Tags:     parser.InferTags(text),
		Paths:    c.Paths,
		Category: c.Category,
		Scope:    p.cfg.Scope,
		Source:   models.Source{Type: models.DocCorrection, Path: string(c.Source())},
	}
	if c.Incorrect != "" {
		if old, err := p.repo.GetEntryByHash(hash.Fingerprint(c.Incorrect)); err == nil {
			entry.Supersedes = old.ID
		}
	}

	err := p.repo.CreateEntry(entry)
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		existing, gerr := p.repo.GetEntryByHash(hash.Fingerprint(text))
		if gerr != nil {
			return "", fmt.Errorf("correction: load existing entry: %w", gerr)
		}
		entry = existing
	case err != nil:
		return "", fmt.Errorf("correction: promote: %w", err)
	}

	if err := p.repo.LinkCorrection(correctionID, entry.ID); err != nil {
		return "", fmt.Errorf("correction: link: %w", err)
	}
	return entry.ID, nil
}
