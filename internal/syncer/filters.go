package syncer

import (
	"path"
	"strings"

	"github.com/starford/memman/internal/textutil"
)

// minSyncLen is the shortest trimmed entry that is ever synced.
const minSyncLen = 10

// Internals of each side's tool configuration. Entries mentioning them only
// make sense to that tool.
var (
	primaryInternals = []string{"mcpServers", ".claude/settings", ".claude/hooks", "CLAUDE.local.md", "PreToolUse", "PostToolUse"}
	mirrorInternals  = []string{"config.toml", "~/.codex", ".codex/", "AGENTS.override.md"}
)

// Tool vocabulary used for affinity, lowercased.
var (
	primaryTools = []string{"claude", "/compact", "slash command", "slash commands"}
	mirrorTools  = []string{"codex"}
)

type affinity int

const (
	affinityShared affinity = iota
	affinityPrimary
	affinityMirror
)

// eligible reports whether content may leave its side. internals are the
// source side's configuration markers.
func eligible(content string, internals []string) bool {
	content = strings.TrimSpace(content)
	if len(content) < minSyncLen {
		return false
	}
	return !textutil.HasAny(content, internals...)
}

// affinityOf classifies text as belonging to one tool, or shared when it
// names both or neither.
func affinityOf(text string) affinity {
	lower := strings.ToLower(text)
	p := textutil.HasWord(lower, primaryTools...)
	m := textutil.HasWord(lower, mirrorTools...)
	switch {
	case p && !m:
		return affinityPrimary
	case m && !p:
		return affinityMirror
	default:
		return affinityShared
	}
}

type phrase struct{ from, to string }

// translator rewrites a fixed set of tool-specific phrases. Matching is
// exact and case-sensitive; everything else is left byte-identical.
type translator []phrase

func (t translator) apply(s string) string {
	for _, p := range t {
		s = strings.ReplaceAll(s, p.from, p.to)
	}
	return s
}

// translators builds the two directions from the document file names.
func translators(primaryPath, mirrorPath string) (toMirror, toPrimary translator) {
	pb, mb := path.Base(primaryPath), path.Base(mirrorPath)
	toMirror = translator{
		{"Claude Code should", "The AI assistant should"},
		{"Claude should", "The AI assistant should"},
	}
	toPrimary = translator{
		{"Codex should", "The AI assistant should"},
	}
	if pb != mb && pb != "." && mb != "." {
		toMirror = append(toMirror, phrase{pb, mb})
		toPrimary = append(toPrimary, phrase{mb, pb})
	}
	return toMirror, toPrimary
}
