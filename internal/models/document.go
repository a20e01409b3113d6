// Package models defines the domain types for memman.
package models

// DocType identifies which kind of instruction document was parsed.
type DocType string

const (
	DocPrimary    DocType = "primary"
	DocMirror     DocType = "mirror"
	DocRule       DocType = "per-path-rule"
	DocMemoryNote DocType = "auto-memory-note"

	// DocCorrection marks memory entries promoted from a correction rather
	// than read from a document.
	DocCorrection DocType = "correction"
)

// Entry is one addressable unit of instruction text: a bullet plus its
// continuation lines, or a whole section when it has no bullets.
type Entry struct {
	Content string   `json:"content"`
	Heading string   `json:"heading,omitempty"`
	Level   int      `json:"level"`
	Tags    []string `json:"tags,omitempty"`
	Paths   []string `json:"paths,omitempty"`
}

// Section is an ordered container of entries under a heading, or the
// heading-less preamble (Level 0).
type Section struct {
	Heading   string  `json:"heading,omitempty"`
	Level     int     `json:"level"`
	Content   string  `json:"content"`
	Entries   []Entry `json:"entries"`
	Managed   bool    `json:"managed"`
	ManagedID string  `json:"managed_id,omitempty"`
}

// Document is a parsed instruction file.
type Document struct {
	Sections []Section `json:"sections"`
	Raw      string    `json:"-"`
	FilePath string    `json:"file_path"`
	Type     DocType   `json:"type"`
}

// UnmanagedEntries returns the entries of every user-owned section in order.
func (d *Document) UnmanagedEntries() []Entry {
	var out []Entry
	for _, s := range d.Sections {
		if s.Managed {
			continue
		}
		out = append(out, s.Entries...)
	}
	return out
}

// ManagedSection returns the managed section with the given id, if any.
func (d *Document) ManagedSection(id string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Managed && s.ManagedID == id {
			return s, true
		}
	}
	return Section{}, false
}

// RuleFile is a per-path rule fragment: frontmatter paths plus a body document.
// An empty Paths list means the rule is loaded unconditionally.
type RuleFile struct {
	Path     string   `json:"path"`
	Paths    []string `json:"paths"`
	Document Document `json:"document"`
}
