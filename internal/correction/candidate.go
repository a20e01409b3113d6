// Package correction detects correction statements in transcripts and file
// edits, classifies them, and persists them as corrections and, when
// confident enough, as standing memory entries.
package correction

import (
	"strings"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/textutil"
)

// Origin is the channel that produced a candidate.
type Origin string

const (
	OriginPattern  Origin = "pattern"
	OriginEdit     Origin = "edit"
	OriginOracle   Origin = "oracle"
	OriginManual   Origin = "manual"
	OriginProtocol Origin = "protocol"
)

// Candidate is a correction before persistence. Origin tags the variant;
// the remaining fields are the normalized core every stage works on.
// Category is empty until classification unless the origin supplied one.
type Candidate struct {
	Origin     Origin          `json:"origin"`
	Incorrect  string          `json:"incorrect"`
	Correct    string          `json:"correct"`
	Category   models.Category `json:"category,omitempty"`
	Paths      []string        `json:"paths,omitempty"`
	Confidence float64         `json:"confidence"`
}

// Source maps the origin to the persisted source channel.
func (c Candidate) Source() models.SourceChannel {
	switch c.Origin {
	case OriginOracle:
		return models.SourceLLM
	case OriginManual:
		return models.SourceManual
	case OriginProtocol:
		return models.SourceProtocol
	default:
		return models.SourcePattern
	}
}

// Key is the case- and whitespace-normalized (incorrect|correct) pair.
func (c Candidate) Key() string {
	return pairKey(c.Incorrect, c.Correct)
}

func pairKey(incorrect, correct string) string {
	return textutil.NormalizeSpace(incorrect) + "|" + textutil.NormalizeSpace(correct)
}

// Text is the statement a promoted memory entry carries.
func (c Candidate) Text() string {
	inc := strings.TrimSpace(c.Incorrect)
	cor := strings.TrimSpace(c.Correct)
	if inc == "" {
		return cor
	}
	return cor + " (not " + inc + ")"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// dedup keeps the first candidate for each normalized pair.
func dedup(in []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, c := range in {
		k := c.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
