package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/textutil"
)

var bulletRe = regexp.MustCompile(`^[-*+]\s+`)

// extractEntries splits section body lines into entries. A top-level bullet
// starts an entry, following non-blank lines continue it, a blank line ends
// it. A section without bullets becomes one entry.
func (p *scanner) extractEntries(lines []string, heading string, level int) []models.Entry {
	var (
		out     []models.Entry
		current []string
		bullets bool
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if e, ok := p.newEntry(strings.Join(current, "\n"), heading, level); ok {
			out = append(out, e)
		}
		current = nil
	}

	fenced := fencedLines(lines)
	for i, line := range lines {
		if fenced[i] {
			if current != nil {
				current = append(current, line)
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if loc := bulletRe.FindStringIndex(line); loc != nil {
			flush()
			bullets = true
			current = []string{line[loc[1]:]}
			continue
		}
		if current != nil {
			current = append(current, line)
		}
	}
	flush()

	if !bullets {
		if e, ok := p.newEntry(joinTrimmed(lines), heading, level); ok {
			return []models.Entry{e}
		}
		return nil
	}
	return out
}

func (p *scanner) newEntry(content, heading string, level int) (models.Entry, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Entry{}, false
	}
	e := models.Entry{
		Content: content,
		Heading: heading,
		Level:   level,
		Tags:    InferTags(content),
	}
	if p.inferPaths {
		e.Paths = InferPaths(content)
	}
	return e, true
}

type tagRule struct {
	tag   string
	stems []string // leading word boundary only
	words []string // both boundaries
}

// tagRules is scanned in order; an entry collects every tag whose rule matches.
var tagRules = []tagRule{
	{tag: "testing", stems: []string{"test", "spec", "jest", "pytest", "phpunit", "vitest", "coverage", "mock"}},
	{tag: "security", stems: []string{"security", "secret", "password", "credential", "token", "xss", "csrf", "encrypt"}, words: []string{".env", "auth"}},
	{tag: "database", stems: []string{"database", "sql", "migration", "query", "queries", "schema", "postgres", "mysql", "sqlite", "eloquent"}},
	{tag: "api", stems: []string{"endpoint", "graphql", "rest"}, words: []string{"api", "apis", "route", "routes"}},
	{tag: "frontend", stems: []string{"vue", "react", "component", "tailwind", "frontend", "css", "jsx", "tsx"}, words: []string{"ui"}},
	{tag: "devops", stems: []string{"docker", "deploy", "kubernetes", "pipeline", "github actions", "terraform"}, words: []string{"ci", "cd", "k8s"}},
	{tag: "rule", words: []string{"never", "always", "must"}},
}

// InferTags returns the topic labels whose keywords occur in content.
func InferTags(content string) []string {
	lower := strings.ToLower(content)
	var tags []string
	for _, r := range tagRules {
		if textutil.HasStem(lower, r.stems...) || textutil.HasWord(lower, r.words...) {
			tags = append(tags, r.tag)
		}
	}
	return tags
}

var pathTokenRe = regexp.MustCompile(`[\w.\-*{}\[\]/~@]+`)

// notPaths are slash words that read as prose, not file paths.
var notPaths = map[string]struct{}{
	"and/or": {}, "i/o": {}, "n/a": {}, "either/or": {}, "yes/no": {},
	"true/false": {}, "read/write": {}, "on/off": {}, "input/output": {},
}

// maxPathLen bounds path tokens; longer matches are almost never paths.
const maxPathLen = 100

// InferPaths returns slash- or glob-bearing tokens from content, excluding
// URLs and over-long matches. The result is a sorted set.
func InferPaths(content string) []string {
	seen := make(map[string]struct{})
	for _, field := range strings.Fields(content) {
		if strings.Contains(field, "://") || strings.HasPrefix(strings.ToLower(field), "www.") {
			continue
		}
		for _, tok := range pathTokenRe.FindAllString(field, -1) {
			tok = strings.TrimRight(tok, ".")
			if !isPathLike(tok) || len(tok) >= maxPathLen {
				continue
			}
			if strings.Trim(tok, "/*.") == "" {
				continue
			}
			if _, prose := notPaths[strings.ToLower(tok)]; prose {
				continue
			}
			seen[tok] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// isPathLike requires a slash, or a glob star next to an extension
// ("*.vue"), so emphasis markers like **bold** are not taken as globs.
func isPathLike(tok string) bool {
	if strings.Contains(tok, "/") {
		return true
	}
	return strings.Contains(tok, "*") && strings.Contains(tok, ".")
}
