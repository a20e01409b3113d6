package correction

import (
	"regexp"
	"strings"
)

// maxPhraseLen drops captures too long to be a single fact.
const maxPhraseLen = 200

type template struct {
	re         *regexp.Regexp
	confidence float64
	// extract maps submatches to (incorrect, correct).
	extract func(m []string) (string, string)
}

// sentenceEnd is terminal punctuation followed by space or end of text, so
// dotted names like moment.js stay whole.
const sentenceEnd = `(?:[.!?](?:\s|$)|\n|$)`

func swap(m []string) (string, string)  { return m[2], m[1] }
func order(m []string) (string, string) { return m[1], m[2] }

var templates = []template{
	{
		re:         regexp.MustCompile(`(?i)\b(?:actually|no),?\s+(?:use|it's|it is|we use)\s+(.+?)\s+instead\s+of\s+(.+?)` + sentenceEnd),
		confidence: 0.85,
		extract:    swap,
	},
	{
		re:         regexp.MustCompile(`(?i)\bdon['’]?t\s+use\s+(.+?),?\s+(?:use|try)\s+(.+?)(?:\s+instead)?` + sentenceEnd),
		confidence: 0.8,
		extract:    order,
	},
	{
		re:         regexp.MustCompile(`(?i)([^\s.!?,;:]+(?:\s+[^\s.!?,;:]+){0,2})\s+is\s+(?:wrong|incorrect|outdated)[,;:]?\s+(?:it\s+)?should\s+be\s+(.+?)` + sentenceEnd),
		confidence: 0.75,
		extract:    order,
	},
	{
		re:         regexp.MustCompile(`(?i)\b(?:changed|renamed|moved)\s+(.+?)\s+to\s+(.+?)` + sentenceEnd),
		confidence: 0.7,
		extract:    order,
	},
	{
		re:         regexp.MustCompile(`(?i)\buse\s+(.+?)\s+(?:instead\s+of|rather\s+than)\s+(.+?)` + sentenceEnd),
		confidence: 0.65,
		extract:    swap,
	},
	{
		re:         regexp.MustCompile(`(?i)\bthe\s+(?:correct|right|proper)\s+(?:way|approach|command)\s+is\s+(?:to\s+)?(.+?)` + sentenceEnd),
		confidence: 0.6,
		extract:    func(m []string) (string, string) { return "", m[1] },
	},
	{
		re:         regexp.MustCompile(`(?i)\bstop\s+using\s+(.+?)(?:[.!?,;](?:\s|$)|\n|$)`),
		confidence: 0.5,
		extract:    func(m []string) (string, string) { return m[1], "Do not use " + cleanPhrase(m[1]) },
	},
}

// DetectPatterns runs every template over text and returns the candidates
// in template order, deduplicated by normalized pair.
func DetectPatterns(text string) []Candidate {
	var out []Candidate
	for _, t := range templates {
		for _, m := range t.re.FindAllStringSubmatch(text, -1) {
			inc, cor := t.extract(m)
			inc, cor = cleanPhrase(inc), cleanPhrase(cor)
			if cor == "" || len(inc) > maxPhraseLen || len(cor) > maxPhraseLen {
				continue
			}
			if strings.EqualFold(inc, cor) {
				continue
			}
			out = append(out, Candidate{
				Origin:     OriginPattern,
				Incorrect:  inc,
				Correct:    cor,
				Confidence: t.confidence,
			})
		}
	}
	return dedup(out)
}

func cleanPhrase(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`'\"“”‘’ ,;:")
}
