package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/memman/internal/apperr"
	"github.com/starford/memman/internal/hash"
	"github.com/starford/memman/internal/models"
)

const entryColumns = `id, content, heading, level, tags, paths, category, scope_kind, scope_qualifier,
	source_type, source_path, sync_targets, created_at, updated_at, use_count, staleness,
	supersedes, content_hash`

// CreateEntry inserts e. An empty ID is filled with a new UUID, an empty
// ContentHash with the content fingerprint, and zero timestamps with now.
// An entry whose fingerprint already exists yields apperr.ErrAlreadyExists.
func (db *DB) CreateEntry(e *models.MemoryEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ContentHash == "" {
		e.ContentHash = hash.Fingerprint(e.Content)
	}
	now := db.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Category == "" {
		e.Category = models.CategoryGeneral
	}
	if e.Scope.Kind == "" {
		e.Scope.Kind = models.ScopeProject
	}

	var exists int
	err := db.conn.QueryRow(`SELECT 1 FROM memory_entries WHERE content_hash = ?`, e.ContentHash).Scan(&exists)
	if err == nil {
		return fmt.Errorf("store: entry %s: %w", e.ContentHash, apperr.ErrAlreadyExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: check entry: %w", err)
	}

	tags, paths, targets := marshalEntryLists(e)
	_, err = db.conn.Exec(`INSERT INTO memory_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Content, e.Heading, e.Level, tags, paths, string(e.Category),
		string(e.Scope.Kind), e.Scope.Qualifier, string(e.Source.Type), e.Source.Path,
		targets, e.CreatedAt, e.UpdatedAt, e.UseCount, e.Staleness, e.Supersedes, e.ContentHash)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("store: entry %s: %w", e.ID, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert entry: %w", err)
	}
	return nil
}

// GetEntry returns the entry with the given id.
func (db *DB) GetEntry(id string) (*models.MemoryEntry, error) {
	row := db.conn.QueryRow(`SELECT `+entryColumns+` FROM memory_entries WHERE id = ?`, id)
	return scanEntry(row)
}

// GetEntryByHash returns the entry with the given content fingerprint.
func (db *DB) GetEntryByHash(fp string) (*models.MemoryEntry, error) {
	row := db.conn.QueryRow(`SELECT `+entryColumns+` FROM memory_entries WHERE content_hash = ?`, fp)
	return scanEntry(row)
}

// UpdateEntry replaces the mutable fields of an existing entry and bumps
// UpdatedAt. The content hash is recomputed from the content.
func (db *DB) UpdateEntry(e *models.MemoryEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	e.ContentHash = hash.Fingerprint(e.Content)
	e.UpdatedAt = db.now()
	tags, paths, targets := marshalEntryLists(e)
	res, err := db.conn.Exec(`UPDATE memory_entries SET
			content = ?, heading = ?, level = ?, tags = ?, paths = ?, category = ?,
			scope_kind = ?, scope_qualifier = ?, source_type = ?, source_path = ?,
			sync_targets = ?, updated_at = ?, use_count = ?, staleness = ?,
			supersedes = ?, content_hash = ?
		WHERE id = ?`,
		e.Content, e.Heading, e.Level, tags, paths, string(e.Category),
		string(e.Scope.Kind), e.Scope.Qualifier, string(e.Source.Type), e.Source.Path,
		targets, e.UpdatedAt, e.UseCount, e.Staleness, e.Supersedes, e.ContentHash, e.ID)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("store: update entry %s: %w", e.ID, apperr.ErrConflict)
		}
		return fmt.Errorf("store: update entry: %w", err)
	}
	return requireAffected(res, "entry "+e.ID)
}

// DeleteEntry removes an entry and its usage log.
func (db *DB) DeleteEntry(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`DELETE FROM memory_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete entry: %w", err)
	}
	return requireAffected(res, "entry "+id)
}

// SetStaleness stores a rescored staleness value. UpdatedAt is left alone
// because the scorer's age factor is measured from it.
func (db *DB) SetStaleness(id string, score float64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`UPDATE memory_entries SET staleness = ? WHERE id = ?`, score, id)
	if err != nil {
		return fmt.Errorf("store: set staleness: %w", err)
	}
	return requireAffected(res, "entry "+id)
}

// ListEntries returns entries matching f, oldest first.
func (db *DB) ListEntries(f EntryFilter) ([]models.MemoryEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Scope != "" {
		where = append(where, "scope_kind = ?")
		args = append(args, string(f.Scope))
	}
	if f.MinStaleness != nil {
		where = append(where, "staleness >= ?")
		args = append(args, *f.MinStaleness)
	}
	if f.MaxStaleness != nil {
		where = append(where, "staleness <= ?")
		args = append(args, *f.MaxStaleness)
	}

	q := `SELECT ` + entryColumns + ` FROM memory_entries`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list entries: %w", err)
	}
	defer rows.Close()

	var out []models.MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// IncrementUse bumps the use count and records a usage event.
func (db *DB) IncrementUse(id, context string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`UPDATE memory_entries SET use_count = use_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: increment use: %w", err)
	}
	if err := requireAffected(res, "entry "+id); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO usage_log (entry_id, context, used_at) VALUES (?, ?, ?)`,
		id, context, db.now()); err != nil {
		return fmt.Errorf("store: log use: %w", err)
	}
	return tx.Commit()
}

// UsesSince counts usage events for id at or after since.
func (db *DB) UsesSince(id string, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT count(*) FROM usage_log WHERE entry_id = ? AND used_at >= ?`,
		id, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: uses since: %w", err)
	}
	return n, nil
}

// CategoryDistribution counts entries per category.
func (db *DB) CategoryDistribution() (map[models.Category]int, error) {
	rows, err := db.conn.Query(`SELECT category, count(*) FROM memory_entries GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("store: category distribution: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Category]int)
	for rows.Next() {
		var (
			c string
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[models.Category(c)] = n
	}
	return out, rows.Err()
}

// CountEntries returns the total number of entries.
func (db *DB) CountEntries() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM memory_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count entries: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*models.MemoryEntry, error) {
	var (
		e                      models.MemoryEntry
		tags, paths, targets   string
		category, kind, srcTyp string
	)
	err := r.Scan(&e.ID, &e.Content, &e.Heading, &e.Level, &tags, &paths, &category,
		&kind, &e.Scope.Qualifier, &srcTyp, &e.Source.Path, &targets,
		&e.CreatedAt, &e.UpdatedAt, &e.UseCount, &e.Staleness, &e.Supersedes, &e.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan entry: %w", err)
	}
	e.Category = models.Category(category)
	e.Scope.Kind = models.ScopeKind(kind)
	e.Source.Type = models.DocType(srcTyp)
	if err := unmarshalList("tags", tags, &e.Tags); err != nil {
		return nil, fmt.Errorf("store: entry %s: %w", e.ID, err)
	}
	if err := unmarshalList("paths", paths, &e.Paths); err != nil {
		return nil, fmt.Errorf("store: entry %s: %w", e.ID, err)
	}
	if err := unmarshalList("sync_targets", targets, &e.SyncTargets); err != nil {
		return nil, fmt.Errorf("store: entry %s: %w", e.ID, err)
	}
	return &e, nil
}

func marshalEntryLists(e *models.MemoryEntry) (tags, paths, targets string) {
	return marshalList(e.Tags), marshalList(e.Paths), marshalList(e.SyncTargets)
}

// unmarshalList decodes a JSON list column. An empty column is an empty list.
func unmarshalList[T any](column, raw string, dst *[]T) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	return nil
}

func marshalList[T any](v []T) string {
	if v == nil {
		v = []T{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s: %w", what, apperr.ErrNotFound)
	}
	return nil
}
