package parser

import (
	"strings"

	"github.com/starford/memman/internal/models"
)

// StartMarker returns the opening marker line for a managed region.
func StartMarker(id string) string {
	return "<!-- memman:start id=" + id + " -->"
}

// EndMarker returns the closing marker line for a managed region.
func EndMarker(id string) string {
	return "<!-- memman:end id=" + id + " -->"
}

// Serialize is the structural inverse of Parse: section contents joined by
// blank lines, managed sections wrapped in their markers.
func Serialize(doc models.Document) string {
	if len(doc.Sections) == 0 {
		return ""
	}
	parts := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		body := strings.TrimRight(s.Content, "\n")
		if s.Managed {
			body = StartMarker(s.ManagedID) + "\n" + body + "\n" + EndMarker(s.ManagedID)
		}
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// RenderEntries renders entries as a bullet list. Entries that already start
// with a bullet glyph are kept as written.
func RenderEntries(entries []string) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		e = strings.TrimSpace(e)
		if !bulletRe.MatchString(e) {
			b.WriteString("- ")
		}
		b.WriteString(e)
	}
	return b.String()
}
