// Package textutil holds the small text predicates shared by the parser,
// classifiers, differ, and correction detectors.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// Tokens returns the set of lowercase word runs longer than two characters.
func Tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

// Jaccard returns |A∩B| / |A∪B| over the word-token sets of a and b.
// Two empty token sets are identical (1.0); exactly one empty set scores 0.
func Jaccard(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// NormalizeSpace lowercases s and collapses runs of whitespace.
func NormalizeSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// HasAny reports whether text contains any of words as a plain substring.
func HasAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// HasWord reports whether text contains any of words with word boundaries
// on both sides. Boundaries are only enforced where the word itself starts
// or ends with a letter or digit, so ".env" matches "the .env file".
func HasWord(text string, words ...string) bool {
	for _, w := range words {
		if indexBounded(text, w, true) {
			return true
		}
	}
	return false
}

// HasStem is HasWord with the trailing boundary relaxed, so "test" also
// matches "tests" and "testing".
func HasStem(text string, words ...string) bool {
	for _, w := range words {
		if indexBounded(text, w, false) {
			return true
		}
	}
	return false
}

func indexBounded(text, w string, requireEnd bool) bool {
	if w == "" {
		return false
	}
	startWord := isWordByte(w[0])
	endWord := isWordByte(w[len(w)-1])
	from := 0
	for {
		i := strings.Index(text[from:], w)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(w)
		okStart := !startWord || i == 0 || !isWordByte(text[i-1])
		okEnd := !requireEnd || !endWord || end == len(text) || !isWordByte(text[end])
		if okStart && okEnd {
			return true
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b < 0x80 && (unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b)))
}

// EstimateTokens is the fixed chars/4 heuristic, rounded up.
func EstimateTokens(s string) int {
	n := len(s)
	return (n + 3) / 4
}
