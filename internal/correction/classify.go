package correction

import (
	"strings"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/parser"
	"github.com/starford/memman/internal/textutil"
)

type categoryRule struct {
	category models.Category
	stems    []string
	words    []string
	phrases  []string // plain substrings
}

// categoryRules is first-match-wins.
var categoryRules = []categoryRule{
	{category: models.CategoryTesting, stems: []string{"test", "spec"}},
	{category: models.CategorySecurity, stems: []string{"security", "auth", "csrf"}},
	{category: models.CategoryArchitecture, stems: []string{"endpoint", "route", "database", "migration", "query", "queries"}, words: []string{"api", "apis"}},
	{category: models.CategoryDependency, stems: []string{"install", "package", "dependency", "dependencies"}},
	{category: models.CategoryWorkflow, stems: []string{"deploy", "build"}, words: []string{"ci"}},
	{category: models.CategoryCommand, stems: []string{"command", "run", "npx", "execute", "invoke"}},
	{category: models.CategoryCodingStandard, stems: []string{"style", "naming", "convention"}},
	{category: models.CategoryDebugging, stems: []string{"debug", "error", "fix"}},
	{category: models.CategoryPreference, stems: []string{"prefer"}, phrases: []string{"use "}},
}

// InferCategory picks a category from keyword rules over text, falling back
// to models.CategoryCorrection.
func InferCategory(text string) models.Category {
	lower := strings.ToLower(text)
	for _, r := range categoryRules {
		if textutil.HasStem(lower, r.stems...) || textutil.HasWord(lower, r.words...) || textutil.HasAny(lower, r.phrases...) {
			return r.category
		}
	}
	return models.CategoryCorrection
}

// Classify fills in category and paths. A category the origin already
// supplied is kept as-is; paths fall back to path-like tokens in the text.
func Classify(c Candidate) Candidate {
	combined := c.Incorrect + " " + c.Correct
	if c.Category == "" || !c.Category.Valid() {
		c.Category = InferCategory(combined)
	}
	if len(c.Paths) == 0 {
		c.Paths = parser.InferPaths(combined)
	}
	c.Confidence = clamp01(c.Confidence)
	return c
}

// ClassifyAll classifies every candidate.
func ClassifyAll(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = Classify(c)
	}
	return out
}

// Merge combines oracle and pattern results. Oracle results win on an
// equal normalized pair; pattern results fill in pairs the oracle missed.
func Merge(pattern, oracle []Candidate) []Candidate {
	out := dedup(append([]Candidate(nil), oracle...))
	covered := make(map[string]struct{}, len(out))
	for _, c := range out {
		covered[c.Key()] = struct{}{}
	}
	for _, c := range pattern {
		k := c.Key()
		if _, ok := covered[k]; ok {
			continue
		}
		covered[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// IsFlipFlop reports whether c exactly reverses a correction in history,
// compared case-insensitively after whitespace normalization.
func IsFlipFlop(c Candidate, history []models.Correction) bool {
	inc := textutil.NormalizeSpace(c.Incorrect)
	cor := textutil.NormalizeSpace(c.Correct)
	if inc == "" {
		return false
	}
	for _, h := range history {
		if textutil.NormalizeSpace(h.Correct) == inc && textutil.NormalizeSpace(h.Incorrect) == cor {
			return true
		}
	}
	return false
}
