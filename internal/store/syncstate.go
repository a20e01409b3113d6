package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/memman/internal/apperr"
	"github.com/starford/memman/internal/models"
)

const syncColumns = `id, source_path, target_path, source_hash, target_hash, direction, last_sync_at`

// GetSyncState returns the record for a document pair.
func (db *DB) GetSyncState(sourcePath, targetPath string) (*models.SyncState, error) {
	row := db.conn.QueryRow(`SELECT `+syncColumns+` FROM sync_state WHERE source_path = ? AND target_path = ?`,
		sourcePath, targetPath)
	return scanSyncState(row)
}

// SetSyncState inserts a new record and sets its ID.
func (db *DB) SetSyncState(s *models.SyncState) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if s.LastSyncAt.IsZero() {
		s.LastSyncAt = db.now()
	}
	res, err := db.conn.Exec(`INSERT INTO sync_state
		(source_path, target_path, source_hash, target_hash, direction, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.SourcePath, s.TargetPath, s.SourceHash, s.TargetHash, string(s.Direction), s.LastSyncAt)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("store: sync state %s -> %s: %w", s.SourcePath, s.TargetPath, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert sync state: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: sync state id: %w", err)
	}
	s.ID = id
	return nil
}

// UpdateSyncState updates hashes, direction, and timestamp of an existing
// record, keeping its identity.
func (db *DB) UpdateSyncState(s *models.SyncState) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if s.LastSyncAt.IsZero() {
		s.LastSyncAt = db.now()
	}
	res, err := db.conn.Exec(`UPDATE sync_state
		SET source_hash = ?, target_hash = ?, direction = ?, last_sync_at = ?
		WHERE id = ?`,
		s.SourceHash, s.TargetHash, string(s.Direction), s.LastSyncAt, s.ID)
	if err != nil {
		return fmt.Errorf("store: update sync state: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("sync state %d", s.ID))
}

// ListSyncStates returns every sync state record.
func (db *DB) ListSyncStates() ([]models.SyncState, error) {
	rows, err := db.conn.Query(`SELECT ` + syncColumns + ` FROM sync_state ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list sync state: %w", err)
	}
	defer rows.Close()

	var out []models.SyncState
	for rows.Next() {
		s, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSyncState(r rowScanner) (*models.SyncState, error) {
	var (
		s   models.SyncState
		dir string
	)
	err := r.Scan(&s.ID, &s.SourcePath, &s.TargetPath, &s.SourceHash, &s.TargetHash, &dir, &s.LastSyncAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan sync state: %w", err)
	}
	s.Direction = models.SyncDirection(dir)
	return &s, nil
}
