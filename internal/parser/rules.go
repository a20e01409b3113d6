package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/memman/internal/models"
	"github.com/starford/memman/internal/storage"
)

// ParseRuleFile parses a per-path rule fragment: an optional frontmatter
// block with a paths list, followed by a markdown body.
func ParseRuleFile(data []byte, filePath string) models.RuleFile {
	fm, body := splitFrontmatter(data)
	return models.RuleFile{
		Path:     filePath,
		Paths:    frontmatterPaths(fm),
		Document: Parse(body, models.DocRule, filePath),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Missing or invalid frontmatter leaves everything as body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// frontmatterPaths reads the paths key as either a YAML list or a
// comma-separated string.
func frontmatterPaths(fm map[string]any) []string {
	if fm == nil {
		return nil
	}
	var out []string
	switch v := fm["paths"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// GenerateRuleFile renders a rule fragment. Frontmatter is emitted only when
// paths is non-empty; a rule without paths loads unconditionally.
func GenerateRuleFile(paths []string, title string, entries []string) (string, error) {
	var b strings.Builder
	if len(paths) > 0 {
		var fm bytes.Buffer
		enc := yaml.NewEncoder(&fm)
		enc.SetIndent(2)
		if err := enc.Encode(struct {
			Paths []string `yaml:"paths"`
		}{Paths: paths}); err != nil {
			return "", fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		b.WriteString("---\n")
		b.Write(fm.Bytes())
		b.WriteString("---\n\n")
	}
	if title != "" {
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	if len(entries) > 0 {
		b.WriteString(RenderEntries(entries))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// ScanRules parses every markdown rule file under dir, sorted by path.
// A missing directory yields no rules.
func ScanRules(store storage.Provider, dir string) ([]models.RuleFile, error) {
	if !store.Exists(dir) {
		return nil, nil
	}
	files, err := store.List(dir)
	if err != nil {
		return nil, fmt.Errorf("parser: scan rules: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	out := make([]models.RuleFile, 0, len(files))
	for _, f := range files {
		data, err := store.Read(f.Path)
		if err != nil {
			return nil, fmt.Errorf("parser: read rule %s: %w", f.Path, err)
		}
		out = append(out, ParseRuleFile(data, filepath.ToSlash(f.Path)))
	}
	return out, nil
}
