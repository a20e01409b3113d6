// Package parser turns instruction markdown into sections and entries,
// serializes it back, and patches managed regions.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/memman/internal/models"
)

var (
	headingRe      = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	managedStartRe = regexp.MustCompile(`^\s*<!--\s*memman:start\s+id=(\S+?)\s*-->\s*$`)
	managedEndRe   = regexp.MustCompile(`^\s*<!--\s*memman:end\s+id=(\S+?)\s*-->\s*$`)
)

// Parse converts raw text into a Document in a single forward pass.
// It never fails: unmatched end markers are plain text and an unterminated
// managed region is closed at end of input.
func Parse(raw string, typ models.DocType, filePath string) models.Document {
	p := &scanner{
		doc:        models.Document{Raw: raw, FilePath: filePath, Type: typ},
		inferPaths: typ == models.DocPrimary,
	}
	if raw != "" {
		lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
		fenced := fencedLines(lines)
		for i, line := range lines {
			p.line(line, fenced[i])
		}
	}
	p.flushPlain()
	p.closeManaged()
	return p.doc
}

// ParsePrimary parses the primary document, inferring declared paths.
func ParsePrimary(raw, filePath string) models.Document {
	return Parse(raw, models.DocPrimary, filePath)
}

// ParseMirror parses the mirrored document.
func ParseMirror(raw, filePath string) models.Document {
	return Parse(raw, models.DocMirror, filePath)
}

type plainSection struct {
	heading string
	level   int
	lines   []string // heading line first, when present
}

type managedRegion struct {
	id    string
	lines []string
}

type scanner struct {
	doc        models.Document
	cur        *plainSection
	managed    *managedRegion
	inferPaths bool
}

// line consumes one input line. Markers and headings inside a closed code
// fence are plain text.
func (p *scanner) line(line string, fenced bool) {
	if p.managed != nil {
		if m := managedEndRe.FindStringSubmatch(line); m != nil && !fenced && m[1] == p.managed.id {
			p.closeManaged()
			return
		}
		p.managed.lines = append(p.managed.lines, line)
		return
	}

	if !fenced {
		if m := managedStartRe.FindStringSubmatch(line); m != nil {
			p.flushPlain()
			p.managed = &managedRegion{id: m[1]}
			return
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			p.flushPlain()
			p.cur = &plainSection{
				heading: strings.TrimSpace(m[2]),
				level:   len(m[1]),
				lines:   []string{line},
			}
			return
		}
	}

	if strings.TrimSpace(line) == "" {
		if p.cur != nil {
			p.cur.lines = append(p.cur.lines, "")
		}
		return
	}
	if p.cur == nil {
		p.cur = &plainSection{}
	}
	p.cur.lines = append(p.cur.lines, line)
}

func (p *scanner) flushPlain() {
	if p.cur == nil {
		return
	}
	s := p.cur
	p.cur = nil

	body := s.lines
	if s.level > 0 {
		body = s.lines[1:]
	}
	content := joinTrimmed(s.lines)
	if content == "" {
		return
	}
	p.doc.Sections = append(p.doc.Sections, models.Section{
		Heading: s.heading,
		Level:   s.level,
		Content: content,
		Entries: p.extractEntries(body, s.heading, s.level),
	})
}

func (p *scanner) closeManaged() {
	if p.managed == nil {
		return
	}
	m := p.managed
	p.managed = nil

	var heading string
	level := 0
	body := m.lines
	fenced := fencedLines(m.lines)
	for i, l := range m.lines {
		if fenced[i] {
			continue
		}
		if h := headingRe.FindStringSubmatch(l); h != nil {
			heading = strings.TrimSpace(h[2])
			level = len(h[1])
			body = append(append([]string{}, m.lines[:i]...), m.lines[i+1:]...)
			break
		}
	}

	p.doc.Sections = append(p.doc.Sections, models.Section{
		Heading:   heading,
		Level:     level,
		Content:   joinTrimmed(m.lines),
		Entries:   p.extractEntries(body, heading, level),
		Managed:   true,
		ManagedID: m.id,
	})
}

// joinTrimmed joins lines and drops leading and trailing blank lines.
func joinTrimmed(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
