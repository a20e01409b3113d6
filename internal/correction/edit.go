package correction

import (
	"strings"

	"github.com/starford/memman/internal/textutil"
)

const (
	maxEditLines   = 3
	minEditSim     = 0.3
	maxEditSim     = 0.95
	editConfWeight = 0.6
)

// DetectEdit compares old and new content of one file. Small edits that
// replace a line with a similar but not identical line become candidates,
// pairing removed and added lines by position.
func DetectEdit(oldContent, newContent string) []Candidate {
	oldLines := lineSet(oldContent)
	newLines := lineSet(newContent)

	removed := difference(oldLines, newLines)
	added := difference(newLines, oldLines)
	if len(removed) < 1 || len(removed) > maxEditLines || len(added) < 1 || len(added) > maxEditLines {
		return nil
	}

	var out []Candidate
	for i := 0; i < len(removed) && i < len(added); i++ {
		sim := textutil.Jaccard(removed[i], added[i])
		if sim <= minEditSim || sim >= maxEditSim {
			continue
		}
		out = append(out, Candidate{
			Origin:     OriginEdit,
			Incorrect:  removed[i],
			Correct:    added[i],
			Confidence: sim * editConfWeight,
		})
	}
	return out
}

type orderedSet struct {
	order []string
	has   map[string]struct{}
}

// lineSet returns the distinct non-blank trimmed lines in first-seen order.
func lineSet(content string) orderedSet {
	s := orderedSet{has: make(map[string]struct{})}
	for _, l := range strings.Split(content, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := s.has[l]; ok {
			continue
		}
		s.has[l] = struct{}{}
		s.order = append(s.order, l)
	}
	return s
}

func difference(a, b orderedSet) []string {
	var out []string
	for _, l := range a.order {
		if _, ok := b.has[l]; !ok {
			out = append(out, l)
		}
	}
	return out
}
