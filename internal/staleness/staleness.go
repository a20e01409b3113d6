// Package staleness scores how likely a memory entry is outdated.
//
//	staleness = age × (1 − usage) × contradiction, clamped to [0,1]
package staleness

import (
	"math"
	"strings"
	"time"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/textutil"
)

// Recommendation is the action band for a score.
type Recommendation string

const (
	Fresh  Recommendation = "fresh"
	Review Recommendation = "review"
	Demote Recommendation = "demote"
	Delete Recommendation = "delete"
)

const (
	ageHorizonDays = 365.0
	usageCap       = 50.0
	// RecentWindow is the span counted as recent usage.
	RecentWindow = 30 * 24 * time.Hour
)

// FileOracle reports which path patterns match at least one project file.
// A nil oracle means paths are assumed to exist.
type FileOracle interface {
	Existing(patterns []string) []string
}

// Input is everything the scorer needs about one entry.
type Input struct {
	Content    string
	Paths      []string
	UpdatedAt  time.Time
	TotalUses  int
	RecentUses int // uses within RecentWindow
}

// FromEntry builds an Input from a persisted entry and its recent use count.
func FromEntry(e models.MemoryEntry, recentUses int) Input {
	return Input{
		Content:    e.Content,
		Paths:      e.Paths,
		UpdatedAt:  e.UpdatedAt,
		TotalUses:  e.UseCount,
		RecentUses: recentUses,
	}
}

// Score computes the staleness of in at time now.
func Score(in Input, now time.Time, files FileOracle) float64 {
	s := AgeFactor(in.UpdatedAt, now) * (1 - UsageFactor(in.TotalUses, in.RecentUses)) *
		ContradictionFactor(in.Content, in.Paths, files)
	return clamp(s)
}

// AgeFactor is days since update over a year, capped at 1.
func AgeFactor(updated, now time.Time) float64 {
	days := now.Sub(updated).Hours() / 24
	return clamp(days / ageHorizonDays)
}

// UsageFactor weights recent share of use against overall volume. Never
// used entries score 0.
func UsageFactor(total, recent int) float64 {
	if total <= 0 {
		return 0
	}
	if recent > total {
		recent = total
	}
	if recent < 0 {
		recent = 0
	}
	return clamp(0.7*(float64(recent)/float64(total)) + 0.3*math.Min(1, float64(total)/usageCap))
}

// ContradictionFactor starts at 1 and multiplies in evidence the entry no
// longer holds: declared paths that match nothing, deprecation language,
// and temporary markers.
func ContradictionFactor(content string, paths []string, files FileOracle) float64 {
	f := 1.0
	if len(paths) > 0 && files != nil && len(files.Existing(paths)) == 0 {
		f *= 2.0
	}
	lower := strings.ToLower(content)
	if strings.Contains(lower, "deprecated") {
		f *= 1.5
	}
	if textutil.HasAny(lower, "temporary", "todo", "fixme") {
		f *= 1.3
	}
	return f
}

// Recommend maps a score to its band.
func Recommend(score float64) Recommendation {
	switch {
	case score < 0.3:
		return Fresh
	case score < 0.6:
		return Review
	case score < 0.8:
		return Demote
	default:
		return Delete
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
