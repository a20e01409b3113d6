// Package differ computes added, removed, modified, and unchanged entries
// between two entry collections using fingerprints with a Jaccard fallback.
package differ

import (
	"github.com/starford/memman/internal/hash"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/textutil"
)

// SimilarityThreshold is the minimum Jaccard score, exclusive, for two
// entries to count as the same fact edited.
const SimilarityThreshold = 0.5

// Modified pairs a source entry with its most similar target entry.
type Modified struct {
	Source     models.Entry `json:"source"`
	Target     models.Entry `json:"target"`
	Similarity float64      `json:"similarity"`
}

// Result is the outcome of Diff.
type Result struct {
	Added     []models.Entry `json:"added"`
	Removed   []models.Entry `json:"removed"`
	Modified  []Modified     `json:"modified"`
	Unchanged []models.Entry `json:"unchanged"`
}

type keyed struct {
	fp    string
	entry models.Entry
}

// index dedups entries by fingerprint, keeping first-seen position and the
// last-seen value.
func index(entries []models.Entry) []keyed {
	pos := make(map[string]int, len(entries))
	out := make([]keyed, 0, len(entries))
	for _, e := range entries {
		fp := hash.Fingerprint(e.Content)
		if i, ok := pos[fp]; ok {
			out[i].entry = e
			continue
		}
		pos[fp] = len(out)
		out = append(out, keyed{fp: fp, entry: e})
	}
	return out
}

// Diff compares source against target. Exact fingerprint matches are
// unchanged; otherwise the most similar unclaimed target above the
// threshold is a modification. Ties go to the earliest target in document
// order, so results are deterministic for a given input.
func Diff(source, target []models.Entry) Result {
	src := index(source)
	tgt := index(target)

	inTarget := make(map[string]struct{}, len(tgt))
	for _, t := range tgt {
		inTarget[t.fp] = struct{}{}
	}
	inSource := fpSet(src)
	claimed := make([]bool, len(tgt))
	for i, t := range tgt {
		if _, ok := inSource[t.fp]; ok {
			claimed[i] = true
		}
	}

	var res Result
	for _, s := range src {
		if _, ok := inTarget[s.fp]; ok {
			res.Unchanged = append(res.Unchanged, s.entry)
			continue
		}
		best, bestSim := -1, 0.0
		for i, t := range tgt {
			if claimed[i] {
				continue
			}
			sim := textutil.Jaccard(s.entry.Content, t.entry.Content)
			if sim > bestSim {
				best, bestSim = i, sim
			}
		}
		if best >= 0 && bestSim > SimilarityThreshold {
			claimed[best] = true
			res.Modified = append(res.Modified, Modified{
				Source:     s.entry,
				Target:     tgt[best].entry,
				Similarity: bestSim,
			})
			continue
		}
		res.Added = append(res.Added, s.entry)
	}

	for i, t := range tgt {
		if !claimed[i] {
			res.Removed = append(res.Removed, t.entry)
		}
	}
	return res
}

func fpSet(ks []keyed) map[string]struct{} {
	out := make(map[string]struct{}, len(ks))
	for _, k := range ks {
		out[k.fp] = struct{}{}
	}
	return out
}
