package parser

import (
	"regexp"
	"strings"
)

// WriteManaged renders a managed region for id into content. An existing
// region with the same id is replaced in place, markers included; otherwise
// the region is appended after exactly one blank line. Writing the same
// region twice yields identical output.
func WriteManaged(content, id, heading string, entries []string) string {
	block := renderManaged(id, heading, entries)

	lines := strings.Split(content, "\n")
	if start, end, ok := findManaged(lines, id); ok {
		out := make([]string, 0, len(lines))
		out = append(out, lines[:start]...)
		out = append(out, block)
		out = append(out, lines[end+1:]...)
		return strings.Join(out, "\n")
	}

	trimmed := strings.TrimRight(content, " \t\r\n")
	if trimmed == "" {
		return block + "\n"
	}
	return trimmed + "\n\n" + block + "\n"
}

// RemoveManaged deletes the managed region for id and collapses the
// surrounding blank lines to at most one. A missing id is a no-op.
func RemoveManaged(content, id string) string {
	lines := strings.Split(content, "\n")
	start, end, ok := findManaged(lines, id)
	if !ok {
		return content
	}
	before := strings.TrimRight(strings.Join(lines[:start], "\n"), " \t\r\n")
	after := strings.TrimLeft(strings.Join(lines[end+1:], "\n"), " \t\r\n")
	switch {
	case before == "" && after == "":
		return ""
	case before == "":
		return after
	case after == "":
		return before + "\n"
	default:
		return before + "\n\n" + after
	}
}

// HasManaged reports whether content holds a complete region for id.
func HasManaged(content, id string) bool {
	_, _, ok := findManaged(strings.Split(content, "\n"), id)
	return ok
}

func renderManaged(id, heading string, entries []string) string {
	var b strings.Builder
	b.WriteString(StartMarker(id))
	b.WriteByte('\n')
	if heading != "" {
		b.WriteString("## ")
		b.WriteString(heading)
		b.WriteString("\n\n")
	}
	if len(entries) > 0 {
		b.WriteString(RenderEntries(entries))
		b.WriteByte('\n')
	}
	b.WriteString(EndMarker(id))
	return b.String()
}

// findManaged returns the line indexes of the start and end markers for id.
// Markers inside a closed code fence are skipped, as the parser skips them.
func findManaged(lines []string, id string) (int, int, bool) {
	q := regexp.QuoteMeta(id)
	startRe := regexp.MustCompile(`^\s*<!--\s*memman:start\s+id=` + q + `\s*-->\s*$`)
	endRe := regexp.MustCompile(`^\s*<!--\s*memman:end\s+id=` + q + `\s*-->\s*$`)

	fenced := fencedLines(lines)
	start := -1
	for i, l := range lines {
		if fenced[i] {
			continue
		}
		if start < 0 {
			if startRe.MatchString(l) {
				start = i
			}
			continue
		}
		if endRe.MatchString(l) {
			return start, i, true
		}
	}
	return 0, 0, false
}
