// Package store persists memory entries, corrections, usage events, and
// document sync state in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/memman/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS memory_entries (
	id              TEXT PRIMARY KEY,
	content         TEXT NOT NULL,
	heading         TEXT NOT NULL DEFAULT '',
	level           INTEGER NOT NULL DEFAULT 0,
	tags            TEXT NOT NULL DEFAULT '[]',
	paths           TEXT NOT NULL DEFAULT '[]',
	category        TEXT NOT NULL DEFAULT 'general',
	scope_kind      TEXT NOT NULL DEFAULT 'project',
	scope_qualifier TEXT NOT NULL DEFAULT '',
	source_type     TEXT NOT NULL DEFAULT '',
	source_path     TEXT NOT NULL DEFAULT '',
	sync_targets    TEXT NOT NULL DEFAULT '[]',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	use_count       INTEGER NOT NULL DEFAULT 0,
	staleness       REAL NOT NULL DEFAULT 0,
	supersedes      TEXT NOT NULL DEFAULT '',
	content_hash    TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_entries_category ON memory_entries(category);

CREATE TABLE IF NOT EXISTS usage_log (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id TEXT NOT NULL REFERENCES memory_entries(id) ON DELETE CASCADE,
	context  TEXT NOT NULL DEFAULT '',
	used_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_entry ON usage_log(entry_id, used_at);

CREATE TABLE IF NOT EXISTS corrections (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	incorrect       TEXT NOT NULL DEFAULT '',
	correct         TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT 'correction',
	paths           TEXT NOT NULL DEFAULT '[]',
	confidence      REAL NOT NULL DEFAULT 0,
	source          TEXT NOT NULL,
	session_id      TEXT NOT NULL DEFAULT '',
	memory_entry_id TEXT NOT NULL DEFAULT '',
	hash            TEXT NOT NULL UNIQUE,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source_path  TEXT NOT NULL,
	target_path  TEXT NOT NULL,
	source_hash  TEXT NOT NULL DEFAULT '',
	target_hash  TEXT NOT NULL DEFAULT '',
	direction    TEXT NOT NULL,
	last_sync_at DATETIME NOT NULL,
	UNIQUE(source_path, target_path)
);
`

// EntryFilter narrows ListEntries. Zero values mean no constraint.
type EntryFilter struct {
	Category     models.Category
	Scope        models.ScopeKind
	MinStaleness *float64
	MaxStaleness *float64
	Limit        int
}

// CorrectionFilter narrows ListCorrections. Zero values mean no constraint.
type CorrectionFilter struct {
	Source        models.SourceChannel
	MinConfidence float64
	Limit         int
}

// Repository is the persistence contract consumed by the sync engine, the
// correction pipeline, and the staleness rescorer.
type Repository interface {
	CreateEntry(e *models.MemoryEntry) error
	GetEntry(id string) (*models.MemoryEntry, error)
	GetEntryByHash(fp string) (*models.MemoryEntry, error)
	UpdateEntry(e *models.MemoryEntry) error
	DeleteEntry(id string) error
	ListEntries(f EntryFilter) ([]models.MemoryEntry, error)
	SearchEntries(query string, limit int) ([]models.MemoryEntry, error)
	SetStaleness(id string, score float64) error
	IncrementUse(id, context string) error
	UsesSince(id string, since time.Time) (int, error)
	CategoryDistribution() (map[models.Category]int, error)
	CountEntries() (int, error)

	CreateCorrection(c *models.Correction) error
	GetCorrectionByHash(hash string) (*models.Correction, error)
	ListCorrections(f CorrectionFilter) ([]models.Correction, error)
	LinkCorrection(id int64, entryID string) error

	GetSyncState(sourcePath, targetPath string) (*models.SyncState, error)
	SetSyncState(s *models.SyncState) error
	UpdateSyncState(s *models.SyncState) error
	ListSyncStates() ([]models.SyncState, error)

	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)

// DB is the SQLite Repository. It holds a single connection and serializes
// check-then-insert sequences so fingerprint dedup cannot race within a
// process.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
	now  func() time.Time
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isUnique(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
