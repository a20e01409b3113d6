package optimizer

import (
	"path"
	"sort"

	"github.com/starford/memman/internal/hash"
	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/textutil"
)

// Existing is what an earlier run left behind: the parsed rule files under
// the rules directory and the topic notes keyed by topic name.
type Existing struct {
	Rules []models.RuleFile
	Notes map[string]models.Document
}

// MergeExisting folds earlier output into plan so that executing it again
// extends the files it would overwrite. A bucket whose file already exists
// keeps the file's entries first, followed by new entries not already
// present by fingerprint. Files no bucket maps to are left alone.
func MergeExisting(plan Plan, rulesDir string, ex Existing) Plan {
	byPath := make(map[string]models.RuleFile, len(ex.Rules))
	for _, rf := range ex.Rules {
		byPath[path.Clean(rf.Path)] = rf
	}

	out := plan
	out.Rules = make([]RuleBucket, len(plan.Rules))
	for i, b := range plan.Rules {
		if rf, ok := byPath[path.Clean(joinRel(rulesDir, b.Name+".md"))]; ok {
			b.Entries = carry(rf.Document.UnmanagedEntries(), b.Entries)
			b.Paths = unionPaths(rf.Paths, b.Paths)
			b.Tokens = entryTokens(b.Entries)
		}
		out.Rules[i] = b
	}

	out.Topics = make([]TopicBucket, len(plan.Topics))
	for i, t := range plan.Topics {
		if doc, ok := ex.Notes[t.Name]; ok {
			t.Entries = carry(doc.UnmanagedEntries(), t.Entries)
			t.Tokens = entryTokens(t.Entries)
		}
		out.Topics[i] = t
	}

	out.OptimizedTokens = textutil.EstimateTokens(out.AlwaysLoad.Content)
	for _, b := range out.Rules {
		if len(b.Paths) == 0 {
			out.OptimizedTokens += b.Tokens
		}
	}
	return out
}

// carry returns the earlier entries followed by the fresh ones, without
// fingerprint duplicates.
func carry(earlier, fresh []models.Entry) []models.Entry {
	seen := make(map[string]struct{}, len(earlier)+len(fresh))
	out := make([]models.Entry, 0, len(earlier)+len(fresh))
	for _, list := range [][]models.Entry{earlier, fresh} {
		for _, e := range list {
			fp := hash.Fingerprint(e.Content)
			if _, ok := seen[fp]; ok {
				continue
			}
			seen[fp] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// unionPaths merges two path sets. An empty set loads unconditionally and
// absorbs the other.
func unionPaths(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, p := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func entryTokens(entries []models.Entry) int {
	n := 0
	for _, e := range entries {
		n += textutil.EstimateTokens(e.Content)
	}
	return n
}
