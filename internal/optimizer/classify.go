// Package optimizer classifies instruction entries by how often they need to
// be loaded and plans a split of the primary document into an always-loaded
// core, path-scoped rule files, and low-priority topic notes.
//
// Classification is keyword heuristics only. It is reproducible, not
// semantically guaranteed.
package optimizer

import (
	"sort"
	"strings"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/textutil"
)

// Class is the load scope assigned to an entry.
type Class string

const (
	ClassAlwaysLoad     Class = "always_load"
	ClassPathScoped     Class = "path_scoped"
	ClassDomainSpecific Class = "domain_specific"
	ClassRare           Class = "rare"
)

// rareLength is the content length above which an otherwise unclassified
// entry is treated as rarely needed.
const rareLength = 200

// Classified is one entry with its load scope.
type Classified struct {
	Entry          models.Entry `json:"entry"`
	Class          Class        `json:"class"`
	SuggestedPaths []string     `json:"suggested_paths,omitempty"`
	Domain         string       `json:"domain,omitempty"`
	Tokens         int          `json:"tokens"`
}

// Classify classifies every entry of the document's unmanaged sections in
// document order.
func Classify(doc models.Document) []Classified {
	var out []Classified
	for _, s := range doc.Sections {
		if s.Managed {
			continue
		}
		for _, e := range s.Entries {
			out = append(out, ClassifyEntry(e))
		}
	}
	return out
}

// ClassifyEntry applies the rules in priority order: critical rules, path
// scope, domain vocabulary, length, then the always_load default.
func ClassifyEntry(e models.Entry) Classified {
	lower := strings.ToLower(e.Content)
	withHeading := lower + "\n" + strings.ToLower(e.Heading)

	c := Classified{
		Entry:  e,
		Tokens: textutil.EstimateTokens(e.Content),
		Domain: InferDomain(withHeading),
	}

	switch {
	case isCritical(lower):
		c.Class = ClassAlwaysLoad
	case len(e.Paths) > 0:
		c.Class = ClassPathScoped
		c.SuggestedPaths = append([]string(nil), e.Paths...)
	default:
		if paths := InferPathPatterns(lower); len(paths) > 0 {
			c.Class = ClassPathScoped
			c.SuggestedPaths = paths
		} else if textutil.HasStem(withHeading, domainVocabulary...) {
			c.Class = ClassDomainSpecific
		} else if len(e.Content) > rareLength {
			c.Class = ClassRare
		} else {
			c.Class = ClassAlwaysLoad
		}
	}
	return c
}

func isCritical(lower string) bool {
	switch {
	case textutil.HasStem(lower, "never") && textutil.HasStem(lower, "commit", "push", "expose"):
		return true
	case textutil.HasStem(lower, "security") && textutil.HasWord(lower, "must"):
		return true
	case textutil.HasWord(lower, "always") && textutil.HasWord(lower, "must"):
		return true
	case textutil.HasWord(lower, "critical", "important"):
		return true
	case textutil.HasWord(lower, ".env") || textutil.HasStem(lower, "secret", "credential"):
		return true
	}
	return false
}

var domainVocabulary = []string{
	"testing", "frontend", "backend", "database", "deployment", "ci/cd", "api", "auth",
}

type pathRule struct {
	stems    []string
	words    []string
	patterns []string
}

// pathRules accumulate: every matching row contributes its patterns.
var pathRules = []pathRule{
	{stems: []string{"test", "spec"}, patterns: []string{"tests/**", "**/*.test.*", "**/*_test.*", "**/*.spec.*"}},
	{stems: []string{"vue"}, words: []string{".vue"}, patterns: []string{"**/*.vue"}},
	{stems: []string{"react"}, words: []string{"tsx", "jsx"}, patterns: []string{"**/*.tsx", "**/*.jsx"}},
	{stems: []string{"tailwind", "stylesheet"}, words: []string{"css", "scss"}, patterns: []string{"**/*.css", "**/*.scss"}},
	{stems: []string{"migration"}, patterns: []string{"**/migrations/**"}},
	{words: []string{"model", "models"}, patterns: []string{"app/Models/**", "**/models/**"}},
	{stems: []string{"controller"}, patterns: []string{"app/Http/Controllers/**", "**/controllers/**"}},
	{stems: []string{"middleware"}, patterns: []string{"**/middleware/**"}},
	{words: []string{"route", "routes", "routing"}, patterns: []string{"routes/**"}},
	{words: []string{"config", "configuration"}, patterns: []string{"config/**"}},
	{stems: []string{"docker"}, patterns: []string{"Dockerfile", "docker-compose*.yml"}},
	{stems: []string{"github actions", "workflow"}, words: []string{"ci"}, patterns: []string{".github/workflows/**"}},
	{words: []string{"package.json", "composer.json", "go.mod", "requirements.txt"}, patterns: []string{"package.json", "composer.json", "go.mod", "requirements.txt"}},
}

// InferPathPatterns maps keywords in lowercased text to conventional glob
// patterns. The result is a sorted set.
func InferPathPatterns(lower string) []string {
	seen := make(map[string]struct{})
	for _, r := range pathRules {
		if textutil.HasStem(lower, r.stems...) || textutil.HasWord(lower, r.words...) {
			for _, p := range r.patterns {
				seen[p] = struct{}{}
			}
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

type domainRule struct {
	domain string
	stems  []string
	words  []string
}

// domainRules is first-match-wins.
var domainRules = []domainRule{
	{domain: "testing", stems: []string{"test", "spec", "jest", "pytest", "phpunit", "vitest", "coverage"}},
	{domain: "frontend", stems: []string{"frontend", "vue", "react", "component", "tailwind", "css"}, words: []string{"ui"}},
	{domain: "backend", stems: []string{"backend", "endpoint", "controller", "server"}, words: []string{"api", "apis"}},
	{domain: "database", stems: []string{"database", "sql", "migration", "query", "queries", "schema", "eloquent"}},
	{domain: "devops", stems: []string{"deploy", "docker", "kubernetes", "pipeline", "ci/cd"}, words: []string{"ci"}},
	{domain: "security", stems: []string{"security", "auth", "password", "secret", "csrf", "xss"}},
}

// InferDomain returns the first matching domain label for lowercased text,
// or "" when none applies.
func InferDomain(lower string) string {
	for _, r := range domainRules {
		if textutil.HasStem(lower, r.stems...) || textutil.HasWord(lower, r.words...) {
			return r.domain
		}
	}
	return ""
}
