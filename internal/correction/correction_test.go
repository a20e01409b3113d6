package correction

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/starford/memman/internal/models"
)

func TestDetectPatterns_DontUse(t *testing.T) {
	got := DetectPatterns("Don't use var, use const or let instead.")
	if len(got) == 0 {
		t.Fatal("no candidates")
	}
	found := false
	for _, c := range got {
		if strings.Contains(c.Incorrect, "var") {
			found = true
			if c.Correct != "const or let" {
				t.Errorf("correct = %q, want %q", c.Correct, "const or let")
			}
		}
	}
	if !found {
		t.Errorf("no candidate with incorrect containing var: %+v", got)
	}
}

func TestDetectPatterns_Templates(t *testing.T) {
	tests := []struct {
		text      string
		incorrect string
		correct   string
	}{
		{"Actually, use pnpm instead of npm.", "npm", "pnpm"},
		{"No, it's src/lib instead of lib.", "lib", "src/lib"},
		{"The port 3000 is wrong, should be 8080.", "The port 3000", "8080"},
		{"We renamed UserService to AccountService.", "UserService", "AccountService"},
		{"the correct way is to run make test.", "", "run make test"},
		{"Please stop using moment.js, it is heavy", "moment.js", "Do not use moment.js"},
		{"Use `rg` rather than `grep`.", "grep", "rg"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := DetectPatterns(tt.text)
			for _, c := range got {
				if c.Incorrect == tt.incorrect && c.Correct == tt.correct {
					if c.Origin != OriginPattern || c.Confidence < 0.5 || c.Confidence > 0.85 {
						t.Errorf("bad candidate %+v", c)
					}
					return
				}
			}
			t.Errorf("want (%q, %q), got %+v", tt.incorrect, tt.correct, got)
		})
	}
}

func TestDetectPatterns_DedupAndGlobal(t *testing.T) {
	text := "Actually, use pnpm instead of npm. Later: actually use PNPM instead of  NPM! Don't use tabs, use spaces."
	got := DetectPatterns(text)
	pairs := make(map[string]int)
	for _, c := range got {
		pairs[c.Key()]++
	}
	if pairs["npm|pnpm"] != 1 {
		t.Errorf("npm pair count = %d, want 1 (%+v)", pairs["npm|pnpm"], got)
	}
	if pairs["tabs|spaces"] != 1 {
		t.Errorf("tabs pair missing: %+v", got)
	}
}

func TestDetectPatterns_NoMatch(t *testing.T) {
	if got := DetectPatterns("Thanks, that looks great."); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestDetectEdit(t *testing.T) {
	old := "# Setup\n- Install deps with npm install --frozen\n- Run the server\n"
	updated := "# Setup\n- Install deps with pnpm install --frozen\n- Run the server\n"
	got := DetectEdit(old, updated)
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	c := got[0]
	if !strings.Contains(c.Incorrect, "npm install") || !strings.Contains(c.Correct, "pnpm install") {
		t.Errorf("pair = (%q, %q)", c.Incorrect, c.Correct)
	}
	// tokens: deps, frozen, install, npm/pnpm, with -> 4 shared of 6
	if c.Confidence <= 0.3*0.6 || c.Confidence >= 0.95*0.6 {
		t.Errorf("confidence = %v out of range", c.Confidence)
	}
}

func TestDetectEdit_Gates(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
	}{
		{"no change", "a line here", "a line here"},
		{"only added", "one line", "one line\nanother new line"},
		{"unrelated", "use tabs for indentation", "deploy on fridays only"},
		{"trivial", "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau upsilon one", "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau upsilon one!"},
		{"too many", "a1 x\nb1 x\nc1 x\nd1 x", "a2 x\nb2 x\nc2 x\nd2 x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEdit(tt.old, tt.new); len(got) != 0 {
				t.Errorf("got %+v, want none", got)
			}
		})
	}
}

func TestInferCategory(t *testing.T) {
	tests := map[string]models.Category{
		"run the unit tests with -race":   models.CategoryTesting,
		"validate csrf tokens":            models.CategorySecurity,
		"the endpoint returns 404":        models.CategoryArchitecture,
		"install lodash-es":               models.CategoryDependency,
		"build with make release":         models.CategoryWorkflow,
		"run make lint":                   models.CategoryCommand,
		"naming: use camelCase":           models.CategoryCodingStandard,
		"the error comes from the parser": models.CategoryDebugging,
		"use tabs":                        models.CategoryPreference,
		"var const or let":                models.CategoryCorrection,
	}
	for in, want := range tests {
		if got := InferCategory(in); got != want {
			t.Errorf("InferCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassify_KeepsOracleCategory(t *testing.T) {
	c := Classify(Candidate{Origin: OriginOracle, Incorrect: "jest", Correct: "vitest", Category: models.CategoryDependency, Confidence: 1.4})
	if c.Category != models.CategoryDependency {
		t.Errorf("category = %q, want oracle's", c.Category)
	}
	if c.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped 1", c.Confidence)
	}
}

func TestClassify_PathFallback(t *testing.T) {
	c := Classify(Candidate{Incorrect: "handlers in src/api", Correct: "handlers in internal/api"})
	if len(c.Paths) != 2 {
		t.Errorf("paths = %v, want both slash tokens", c.Paths)
	}
	c = Classify(Candidate{Correct: "x", Paths: []string{"given/**"}})
	if len(c.Paths) != 1 || c.Paths[0] != "given/**" {
		t.Errorf("explicit paths replaced: %v", c.Paths)
	}
}

func TestMerge_OraclePrecedence(t *testing.T) {
	pattern := []Candidate{
		{Origin: OriginPattern, Incorrect: "npm", Correct: "pnpm", Confidence: 0.85},
		{Origin: OriginPattern, Incorrect: "tabs", Correct: "spaces", Confidence: 0.8},
	}
	oracle := []Candidate{
		{Origin: OriginOracle, Incorrect: "NPM", Correct: " pnpm ", Category: models.CategoryDependency, Confidence: 0.95},
	}
	got := Merge(pattern, oracle)
	if len(got) != 2 {
		t.Fatalf("merged = %d, want 2: %+v", len(got), got)
	}
	var npm []Candidate
	for _, c := range got {
		if c.Key() == "npm|pnpm" {
			npm = append(npm, c)
		}
	}
	if len(npm) != 1 {
		t.Fatalf("npm entries = %d, want 1", len(npm))
	}
	if npm[0].Confidence != 0.95 || npm[0].Category != models.CategoryDependency || npm[0].Origin != OriginOracle {
		t.Errorf("merged npm = %+v, want oracle's", npm[0])
	}
}

func TestIsFlipFlop(t *testing.T) {
	history := []models.Correction{{Incorrect: "npm", Correct: "pnpm"}}
	if !IsFlipFlop(Candidate{Incorrect: "pnpm", Correct: "npm"}, history) {
		t.Error("reverse pair should flip-flop")
	}
	if !IsFlipFlop(Candidate{Incorrect: " PNPM", Correct: "Npm "}, history) {
		t.Error("reverse pair should flip-flop regardless of case and spacing")
	}
	if IsFlipFlop(Candidate{Incorrect: "yarn", Correct: "pnpm"}, history) {
		t.Error("yarn -> pnpm is not a flip-flop")
	}
	if IsFlipFlop(Candidate{Incorrect: "npm", Correct: "pnpm"}, history) {
		t.Error("same direction is not a flip-flop")
	}
}

func TestWindow(t *testing.T) {
	short := strings.Repeat("a", 100)
	if Window(short, 200) != short {
		t.Error("short text should pass through")
	}
	long := strings.Repeat("h", 60) + strings.Repeat("m", 100) + strings.Repeat("t", 60)
	got := Window(long, 100)
	if !strings.HasPrefix(got, strings.Repeat("h", 50)) || !strings.HasSuffix(got, strings.Repeat("t", 50)) {
		t.Errorf("window lost head or tail: %q", got)
	}
	if strings.Contains(got, "m") {
		t.Errorf("window kept the middle: %q", got)
	}
}

func TestWindow_RuneBoundaries(t *testing.T) {
	// "é" is two bytes, so a 103-byte limit cuts mid-rune on both sides.
	long := strings.Repeat("é", 200)
	got := Window(long, 103)
	if !utf8.ValidString(got) {
		t.Fatalf("window split a rune: %q", got)
	}
	head, tail, ok := strings.Cut(got, "\n\n[...]\n\n")
	if !ok {
		t.Fatalf("missing separator: %q", got)
	}
	if head != strings.Repeat("é", 25) || tail != strings.Repeat("é", 25) {
		t.Errorf("head=%d tail=%d bytes, want 50 each", len(head), len(tail))
	}
}

func TestCandidateText(t *testing.T) {
	if got := (Candidate{Incorrect: "npm", Correct: "Use pnpm"}).Text(); got != "Use pnpm (not npm)" {
		t.Errorf("text = %q", got)
	}
	if got := (Candidate{Correct: "Add a changelog entry"}).Text(); got != "Add a changelog entry" {
		t.Errorf("text = %q", got)
	}
}
