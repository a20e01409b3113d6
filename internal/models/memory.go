package models

import "time"

// Category is the closed set of memory entry and correction categories.
type Category string

const (
	CategoryCorrection     Category = "correction"
	CategoryPreference     Category = "preference"
	CategoryCodingStandard Category = "coding_standard"
	CategoryArchitecture   Category = "architecture"
	CategoryWorkflow       Category = "workflow"
	CategoryTesting        Category = "testing"
	CategorySecurity       Category = "security"
	CategoryDependency     Category = "dependency"
	CategoryCommand        Category = "command"
	CategoryDebugging      Category = "debugging"
	CategoryGeneral        Category = "general"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryCorrection, CategoryPreference, CategoryCodingStandard,
	CategoryArchitecture, CategoryWorkflow, CategoryTesting,
	CategorySecurity, CategoryDependency, CategoryCommand,
	CategoryDebugging, CategoryGeneral,
}

// Valid reports whether c is a member of the closed enumeration.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// ScopeKind is the visibility level of a memory entry.
type ScopeKind string

const (
	ScopeGlobal    ScopeKind = "global"
	ScopeProject   ScopeKind = "project"
	ScopeDirectory ScopeKind = "directory"
)

// Scope pairs a scope kind with its qualifier (project root or directory path).
type Scope struct {
	Kind      ScopeKind `json:"kind"`
	Qualifier string    `json:"qualifier,omitempty"`
}

// Source records where a memory entry originated.
type Source struct {
	Type DocType `json:"type"`
	Path string  `json:"path"`
}

// SyncTarget records a document an entry was written to and the entry
// fingerprint at the time of that write.
type SyncTarget struct {
	Type DocType `json:"type"`
	Path string  `json:"path"`
	Hash string  `json:"hash"`
}

// MemoryEntry is a persisted entry.
type MemoryEntry struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Heading     string       `json:"heading,omitempty"`
	Level       int          `json:"level"`
	Tags        []string     `json:"tags"`
	Paths       []string     `json:"paths"`
	Category    Category     `json:"category"`
	Scope       Scope        `json:"scope"`
	Source      Source       `json:"source"`
	SyncTargets []SyncTarget `json:"sync_targets"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	UseCount    int          `json:"use_count"`
	Staleness   float64      `json:"staleness"`
	Supersedes  string       `json:"supersedes,omitempty"`
	ContentHash string       `json:"content_hash"`
}

// HasTarget reports whether the entry was already synced to path.
func (m *MemoryEntry) HasTarget(path string) bool {
	for _, t := range m.SyncTargets {
		if t.Path == path {
			return true
		}
	}
	return false
}

// SourceChannel is how a correction was captured.
type SourceChannel string

const (
	SourcePattern  SourceChannel = "pattern"
	SourceLLM      SourceChannel = "llm"
	SourceManual   SourceChannel = "manual"
	SourceProtocol SourceChannel = "mcp"
)

// Correction is a persisted statement that something believed earlier was wrong.
// Incorrect may be empty for a pure addendum.
type Correction struct {
	ID            int64         `json:"id"`
	Incorrect     string        `json:"incorrect"`
	Correct       string        `json:"correct"`
	Category      Category      `json:"category"`
	Paths         []string      `json:"paths"`
	Confidence    float64       `json:"confidence"`
	Source        SourceChannel `json:"source"`
	SessionID     string        `json:"session_id,omitempty"`
	MemoryEntryID string        `json:"memory_entry_id,omitempty"`
	Hash          string        `json:"hash"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SyncDirection selects which way entries flow between the two documents.
type SyncDirection string

const (
	DirPrimaryToMirror SyncDirection = "primary-to-mirror"
	DirMirrorToPrimary SyncDirection = "mirror-to-primary"
	DirBidirectional   SyncDirection = "bidirectional"
)

// Outbound reports whether primary entries are pushed to the mirror.
func (d SyncDirection) Outbound() bool {
	return d == DirPrimaryToMirror || d == DirBidirectional
}

// Inbound reports whether mirror entries are pulled into the primary.
func (d SyncDirection) Inbound() bool {
	return d == DirMirrorToPrimary || d == DirBidirectional
}

// SyncState is the per document-pair record of the last sync. Hashes cover
// the entire raw file content.
type SyncState struct {
	ID         int64         `json:"id"`
	SourcePath string        `json:"source_path"`
	TargetPath string        `json:"target_path"`
	SourceHash string        `json:"source_hash"`
	TargetHash string        `json:"target_hash"`
	Direction  SyncDirection `json:"direction"`
	LastSyncAt time.Time     `json:"last_sync_at"`
}
