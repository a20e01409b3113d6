package optimizer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/parser"
	"github.com/starford/memman/internal/storage"
)

func TestClassifyEntry_CriticalRule(t *testing.T) {
	c := ClassifyEntry(models.Entry{Content: "Never commit .env files to git"})
	if c.Class != ClassAlwaysLoad {
		t.Errorf("class = %q, want %q", c.Class, ClassAlwaysLoad)
	}
}

func TestClassifyEntry_VuePaths(t *testing.T) {
	c := ClassifyEntry(models.Entry{Content: "Use Vue 3 composition API for all components"})
	if c.Class != ClassPathScoped {
		t.Fatalf("class = %q, want %q", c.Class, ClassPathScoped)
	}
	found := false
	for _, p := range c.SuggestedPaths {
		if strings.HasSuffix(p, ".vue") {
			found = true
		}
	}
	if !found {
		t.Errorf("suggested paths %v have no .vue glob", c.SuggestedPaths)
	}
}

func TestClassifyEntry_Priority(t *testing.T) {
	tests := []struct {
		name  string
		entry models.Entry
		want  Class
	}{
		{"critical beats paths", models.Entry{Content: "Never push directly to main, run tests first"}, ClassAlwaysLoad},
		{"always must", models.Entry{Content: "You must always run the linter"}, ClassAlwaysLoad},
		{"important", models.Entry{Content: "Important: keep responses short"}, ClassAlwaysLoad},
		{"explicit paths", models.Entry{Content: "Handlers live in src/handlers", Paths: []string{"src/handlers"}}, ClassPathScoped},
		{"inferred paths", models.Entry{Content: "Write migrations with rollback support"}, ClassPathScoped},
		{"domain from heading", models.Entry{Content: "Prefer idempotent steps", Heading: "Deployment"}, ClassDomainSpecific},
		{"domain from content", models.Entry{Content: "Version the public API"}, ClassDomainSpecific},
		{"rare", models.Entry{Content: strings.Repeat("historical note about the old setup ", 8)}, ClassRare},
		{"short default", models.Entry{Content: "Use TypeScript strict mode"}, ClassAlwaysLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyEntry(tt.entry).Class; got != tt.want {
				t.Errorf("class = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyEntry_Tokens(t *testing.T) {
	c := ClassifyEntry(models.Entry{Content: "abcde"})
	if c.Tokens != 2 {
		t.Errorf("tokens = %d, want 2", c.Tokens)
	}
}

func TestInferDomain_FirstMatchWins(t *testing.T) {
	tests := map[string]string{
		"test the api endpoints":    "testing",
		"vue components call apis": "frontend",
		"api versioning":            "backend",
		"slow sql queries":          "database",
		"deploy on friday":          "devops",
		"auth tokens rotate":        "security",
		"keep it simple":            "",
	}
	for in, want := range tests {
		if got := InferDomain(in); got != want {
			t.Errorf("InferDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassify_SkipsManaged(t *testing.T) {
	doc := parser.ParsePrimary(`- Use TypeScript strict mode

<!-- memman:start id=from-mirror -->
- Synced from elsewhere
<!-- memman:end id=from-mirror -->
`, "CLAUDE.md")
	got := Classify(doc)
	if len(got) != 1 {
		t.Fatalf("classified %d entries, want 1", len(got))
	}
}

const bigDoc = `# Rules

- Never commit .env files to git
- Use TypeScript strict mode

# Frontend

- Use Vue 3 composition API for all components
- Keep .vue files under 300 lines

# Ops

- Prefer blue-green deployment

# History

- ` + "The project moved from a hand-rolled build script to the current setup after the old release process kept breaking, and several of the old flags are still referenced in older branches that nobody maintains anymore."

func TestBuildPlan(t *testing.T) {
	plan := BuildPlan(parser.ParsePrimary(bigDoc, "CLAUDE.md"))

	if n := len(plan.AlwaysLoad.Entries); n != 2 {
		t.Errorf("always-load entries = %d, want 2", n)
	}
	if !strings.HasPrefix(plan.AlwaysLoad.Content, "# Rules\n\n- Never commit") {
		t.Errorf("always-load content = %q", plan.AlwaysLoad.Content)
	}

	var names []string
	for _, r := range plan.Rules {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"vue", "devops"}, names); diff != "" {
		t.Errorf("rule names mismatch (-want +got):\n%s", diff)
	}
	if got := plan.Rules[0].Paths; len(got) != 1 || got[0] != "**/*.vue" {
		t.Errorf("vue paths = %v", got)
	}
	if len(plan.Rules[0].Entries) != 2 {
		t.Errorf("vue entries = %d, want 2", len(plan.Rules[0].Entries))
	}
	if len(plan.Rules[1].Paths) != 0 {
		t.Errorf("domain bucket should be unconditional, got %v", plan.Rules[1].Paths)
	}

	if len(plan.Topics) != 1 || plan.Topics[0].Name != "historical" {
		t.Fatalf("topics = %+v", plan.Topics)
	}
	if plan.OptimizedTokens >= plan.OriginalTokens {
		t.Errorf("optimized %d >= original %d", plan.OptimizedTokens, plan.OriginalTokens)
	}
}

func TestBuildPlan_UniqueNames(t *testing.T) {
	doc := parser.ParsePrimary("- Write tests first\n- Keep src/foo.test.ts fast\n", "CLAUDE.md")
	plan := BuildPlan(doc)
	if len(plan.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(plan.Rules))
	}
	if plan.Rules[0].Name != "testing" || plan.Rules[1].Name != "testing-2" {
		t.Errorf("names = %q, %q", plan.Rules[0].Name, plan.Rules[1].Name)
	}
}

func TestExecute(t *testing.T) {
	project, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	memory, err := storage.EnsureFS(t.TempDir() + "/memory")
	if err != nil {
		t.Fatal(err)
	}
	if err := project.Write("CLAUDE.md", []byte(bigDoc)); err != nil {
		t.Fatal(err)
	}

	plan := BuildPlan(parser.ParsePrimary(bigDoc, "CLAUDE.md"))
	target := Target{Project: project, PrimaryPath: "CLAUDE.md", RulesDir: ".claude/rules", Memory: memory}

	dry, err := Execute(plan, target, true)
	if err != nil {
		t.Fatalf("Execute dry: %v", err)
	}
	if project.Exists(".claude/rules/vue.md") {
		t.Error("dry run wrote a rule file")
	}

	res, err := Execute(plan, target, false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if diff := cmp.Diff(dry.Rules, res.Rules); diff != "" {
		t.Errorf("dry run and real run differ (-dry +real):\n%s", diff)
	}

	primary, _ := project.Read("CLAUDE.md")
	if strings.Contains(string(primary), "Vue") {
		t.Errorf("primary still has scoped entries:\n%s", primary)
	}

	rule, err := project.Read(".claude/rules/vue.md")
	if err != nil {
		t.Fatalf("read rule: %v", err)
	}
	rf := parser.ParseRuleFile(rule, ".claude/rules/vue.md")
	if diff := cmp.Diff([]string{"**/*.vue"}, rf.Paths); diff != "" {
		t.Errorf("rule paths mismatch (-want +got):\n%s", diff)
	}
	if n := len(rf.Document.UnmanagedEntries()); n != 2 {
		t.Errorf("rule entries = %d, want 2", n)
	}

	devops, _ := project.Read(".claude/rules/devops.md")
	if strings.HasPrefix(string(devops), "---") {
		t.Errorf("unconditional rule has frontmatter:\n%s", devops)
	}

	if !memory.Exists("historical.md") {
		t.Error("historical note not written")
	}
}
