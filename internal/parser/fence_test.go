package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const fencedExample = "# Docs\n\nMarker example:\n\n```markdown\n<!-- memman:start id=from-mirror -->\nexample body\n<!-- memman:end id=from-mirror -->\n```\n\n- Keep docs short and direct\n"

func TestFencedLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []bool
	}{
		{"closed", []string{"a", "```go", "x", "```", "b"}, []bool{false, true, true, true, false}},
		{"unclosed", []string{"a", "```bash", "x", "b"}, []bool{false, false, false, false}},
		{"tilde not closed by backticks", []string{"~~~", "x", "```", "~~~"}, []bool{true, true, true, true}},
		{"two fences", []string{"```", "```", "y", "```", "```"}, []bool{true, true, false, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, fencedLines(tt.lines)); diff != "" {
				t.Errorf("fencedLines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteManaged_FencedExampleUntouched(t *testing.T) {
	out := WriteManaged(fencedExample, "from-mirror", "", []string{"Use gofmt on every file you touch"})
	want := fencedExample + "\n<!-- memman:start id=from-mirror -->\n- Use gofmt on every file you touch\n<!-- memman:end id=from-mirror -->\n"
	if out != want {
		t.Errorf("got %q\nwant %q", out, want)
	}
	if again := WriteManaged(out, "from-mirror", "", []string{"Use gofmt on every file you touch"}); again != out {
		t.Errorf("second write changed output:\n%q", again)
	}

	doc := ParsePrimary(out, "CLAUDE.md")
	m, ok := doc.ManagedSection("from-mirror")
	if !ok || len(m.Entries) != 1 || m.Entries[0].Content != "Use gofmt on every file you touch" {
		t.Errorf("managed section = %+v", m)
	}
}

func TestRemoveManaged_FencedExampleIsNotARegion(t *testing.T) {
	if HasManaged(fencedExample, "from-mirror") {
		t.Error("fenced example reported as a region")
	}
	if got := RemoveManaged(fencedExample, "from-mirror"); got != fencedExample {
		t.Errorf("fenced example removed: %q", got)
	}
	doc := ParsePrimary(fencedExample, "CLAUDE.md")
	if _, ok := doc.ManagedSection("from-mirror"); ok {
		t.Error("parser opened a region inside the fence")
	}
}

func TestParse_UnclosedFenceDoesNotHideRegion(t *testing.T) {
	in := "# Setup\n\n```bash\nnpm ci\n\n- Pin dependency versions in the lockfile\n"
	out := WriteManaged(in, "from-mirror", "Synced from AGENTS.md", []string{"Use gofmt on every file you touch"})
	if !HasManaged(out, "from-mirror") {
		t.Fatalf("written region not found:\n%s", out)
	}

	doc := ParsePrimary(out, "CLAUDE.md")
	if _, ok := doc.ManagedSection("from-mirror"); !ok {
		t.Fatalf("parser missed the region: %+v", doc.Sections)
	}
	var got []string
	for _, e := range doc.UnmanagedEntries() {
		got = append(got, e.Content)
	}
	if diff := cmp.Diff([]string{"Pin dependency versions in the lockfile"}, got); diff != "" {
		t.Errorf("unmanaged entries mismatch (-want +got):\n%s", diff)
	}
	for _, c := range got {
		if strings.Contains(c, "memman:") {
			t.Errorf("marker leaked into user entry %q", c)
		}
	}
}
