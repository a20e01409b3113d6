package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/parser"
	"github.com/starford/memman/internal/storage"
	"github.com/starford/memman/internal/textutil"
)

// RuleBucket is one rule file to write. Empty Paths means the rule loads
// unconditionally.
type RuleBucket struct {
	Name    string         `json:"name"`
	Paths   []string       `json:"paths"`
	Entries []models.Entry `json:"entries"`
	Tokens  int            `json:"tokens"`
}

// TopicBucket is a low-priority note written outside the rules directory.
type TopicBucket struct {
	Name    string         `json:"name"`
	Entries []models.Entry `json:"entries"`
	Tokens  int            `json:"tokens"`
}

// Plan is the proposed split of a primary document.
type Plan struct {
	AlwaysLoad      models.Section `json:"always_load"`
	Rules           []RuleBucket   `json:"rules"`
	Topics          []TopicBucket  `json:"topics"`
	OriginalTokens  int            `json:"original_tokens"`
	OptimizedTokens int            `json:"optimized_tokens"`
}

// historicalTopic names the bucket for rare entries.
const historicalTopic = "historical"

// BuildPlan classifies the document's unmanaged entries and groups them.
// OptimizedTokens counts what still loads every session: the always-loaded
// section plus unconditional rules.
func BuildPlan(doc models.Document) Plan {
	classified := Classify(doc)

	var (
		always   []models.Entry
		rare     []models.Entry
		pathKeys []string
		byPaths  = make(map[string]*RuleBucket)
		domains  []string
		byDomain = make(map[string][]Classified)
	)
	for _, c := range classified {
		switch c.Class {
		case ClassAlwaysLoad:
			always = append(always, c.Entry)
		case ClassPathScoped:
			key := pathKey(c.SuggestedPaths)
			b, ok := byPaths[key]
			if !ok {
				b = &RuleBucket{Name: bucketName(key, c.Domain), Paths: splitKey(key)}
				byPaths[key] = b
				pathKeys = append(pathKeys, key)
			}
			b.Entries = append(b.Entries, c.Entry)
			b.Tokens += c.Tokens
		case ClassDomainSpecific:
			d := c.Domain
			if d == "" {
				d = "general"
			}
			if _, ok := byDomain[d]; !ok {
				domains = append(domains, d)
			}
			byDomain[d] = append(byDomain[d], c)
		case ClassRare:
			rare = append(rare, c.Entry)
		}
	}

	var plan Plan
	plan.AlwaysLoad = alwaysSection(always)
	plan.OriginalTokens = textutil.EstimateTokens(doc.Raw)
	plan.OptimizedTokens = textutil.EstimateTokens(plan.AlwaysLoad.Content)

	names := make(map[string]int)
	for _, key := range pathKeys {
		b := byPaths[key]
		b.Name = uniqueName(names, b.Name)
		plan.Rules = append(plan.Rules, *b)
	}
	for _, d := range domains {
		group := byDomain[d]
		b := RuleBucket{Name: uniqueName(names, d)}
		seen := make(map[string]struct{})
		for _, c := range group {
			b.Entries = append(b.Entries, c.Entry)
			b.Tokens += c.Tokens
			for _, p := range c.SuggestedPaths {
				seen[p] = struct{}{}
			}
		}
		for p := range seen {
			b.Paths = append(b.Paths, p)
		}
		sort.Strings(b.Paths)
		if len(b.Paths) == 0 {
			plan.OptimizedTokens += b.Tokens
		}
		plan.Rules = append(plan.Rules, b)
	}

	if len(rare) > 0 {
		t := TopicBucket{Name: historicalTopic, Entries: rare}
		for _, e := range rare {
			t.Tokens += textutil.EstimateTokens(e.Content)
		}
		plan.Topics = append(plan.Topics, t)
	}
	return plan
}

func pathKey(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func splitKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ",")
}

type nameRule struct {
	needles []string
	name    string
}

// nameRules is first-match-wins over the lowercased path key.
var nameRules = []nameRule{
	{[]string{"test", "spec"}, "testing"},
	{[]string{".vue"}, "vue"},
	{[]string{".tsx", ".jsx"}, "react"},
	{[]string{".css", ".scss", "tailwind"}, "styling"},
	{[]string{"migration"}, "database"},
	{[]string{"controllers"}, "controllers"},
	{[]string{"models"}, "models"},
	{[]string{"route"}, "routing"},
	{[]string{".github"}, "ci"},
	{[]string{"docker"}, "docker"},
	{[]string{"config"}, "config"},
}

func bucketName(key, domain string) string {
	lower := strings.ToLower(key)
	for _, r := range nameRules {
		if textutil.HasAny(lower, r.needles...) {
			return r.name
		}
	}
	if domain != "" {
		return domain
	}
	return "misc"
}

func uniqueName(used map[string]int, name string) string {
	used[name]++
	if n := used[name]; n > 1 {
		return fmt.Sprintf("%s-%d", name, n)
	}
	return name
}

// alwaysSection renders always-loaded entries grouped under their original
// headings, in first-seen order. Heading-less entries come first.
func alwaysSection(entries []models.Entry) models.Section {
	var (
		order  []string
		groups = make(map[string][]string)
		levels = make(map[string]int)
	)
	for _, e := range entries {
		if _, ok := groups[e.Heading]; !ok {
			order = append(order, e.Heading)
			levels[e.Heading] = e.Level
		}
		groups[e.Heading] = append(groups[e.Heading], e.Content)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i] == "" && order[j] != "" })

	parts := make([]string, 0, len(order))
	for _, h := range order {
		body := parser.RenderEntries(groups[h])
		if h != "" {
			level := levels[h]
			if level < 1 {
				level = 2
			}
			body = strings.Repeat("#", level) + " " + h + "\n\n" + body
		}
		parts = append(parts, body)
	}
	return models.Section{
		Content: strings.Join(parts, "\n\n"),
		Entries: entries,
	}
}

// Target says where an executed plan is written.
type Target struct {
	Project     storage.Provider // project root
	PrimaryPath string           // relative to Project
	RulesDir    string           // relative to Project
	Memory      storage.Provider // per-project memory area
}

// Result lists the files an executed plan wrote, relative to their provider.
type Result struct {
	Primary string   `json:"primary"`
	Rules   []string `json:"rules"`
	Notes   []string `json:"notes"`
	DryRun  bool     `json:"dry_run"`
}

// Execute writes the plan. The primary document is fully overwritten with
// the always-loaded content. With dryRun nothing is written but the same
// file list is returned.
func Execute(plan Plan, t Target, dryRun bool) (Result, error) {
	res := Result{Primary: t.PrimaryPath, DryRun: dryRun}

	type pending struct {
		store storage.Provider
		path  string
		data  string
	}
	var writes []pending

	primary := plan.AlwaysLoad.Content
	if primary != "" {
		primary += "\n"
	}
	writes = append(writes, pending{t.Project, t.PrimaryPath, primary})

	for _, b := range plan.Rules {
		contents := make([]string, len(b.Entries))
		for i, e := range b.Entries {
			contents[i] = e.Content
		}
		data, err := parser.GenerateRuleFile(b.Paths, titleCase(b.Name), contents)
		if err != nil {
			return res, fmt.Errorf("optimizer: render rule %s: %w", b.Name, err)
		}
		p := joinRel(t.RulesDir, b.Name+".md")
		res.Rules = append(res.Rules, p)
		writes = append(writes, pending{t.Project, p, data})
	}

	for _, tb := range plan.Topics {
		if t.Memory == nil {
			break
		}
		contents := make([]string, len(tb.Entries))
		for i, e := range tb.Entries {
			contents[i] = e.Content
		}
		data := "# " + titleCase(tb.Name) + "\n\n" + parser.RenderEntries(contents) + "\n"
		p := tb.Name + ".md"
		res.Notes = append(res.Notes, p)
		writes = append(writes, pending{t.Memory, p, data})
	}

	if dryRun {
		return res, nil
	}
	for _, w := range writes {
		if err := w.store.Write(w.path, []byte(w.data)); err != nil {
			return res, fmt.Errorf("optimizer: write %s: %w", w.path, err)
		}
	}
	return res, nil
}

func joinRel(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
