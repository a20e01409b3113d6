package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/memman/internal/apperr"
	"github.com/starford/memman/internal/hash"
	"github.com/starford/memman/internal/models"
)

const correctionColumns = `id, incorrect, correct, category, paths, confidence, source,
	session_id, memory_entry_id, hash, created_at`

// CreateCorrection inserts c and sets its ID. An empty Hash is filled with
// the pair fingerprint; a duplicate pair yields apperr.ErrAlreadyExists.
func (db *DB) CreateCorrection(c *models.Correction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c.Hash == "" {
		c.Hash = hash.Pair(c.Incorrect, c.Correct)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = db.now()
	}
	if c.Category == "" {
		c.Category = models.CategoryCorrection
	}

	res, err := db.conn.Exec(`INSERT INTO corrections
		(incorrect, correct, category, paths, confidence, source, session_id, memory_entry_id, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Incorrect, c.Correct, string(c.Category), marshalList(c.Paths), c.Confidence,
		string(c.Source), c.SessionID, c.MemoryEntryID, c.Hash, c.CreatedAt)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("store: correction %s: %w", c.Hash, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert correction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: correction id: %w", err)
	}
	c.ID = id
	return nil
}

// GetCorrectionByHash returns the correction with the given pair fingerprint.
func (db *DB) GetCorrectionByHash(h string) (*models.Correction, error) {
	row := db.conn.QueryRow(`SELECT `+correctionColumns+` FROM corrections WHERE hash = ?`, h)
	return scanCorrection(row)
}

// ListCorrections returns corrections matching f, newest first.
func (db *DB) ListCorrections(f CorrectionFilter) ([]models.Correction, error) {
	var (
		where []string
		args  []any
	)
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.MinConfidence > 0 {
		where = append(where, "confidence >= ?")
		args = append(args, f.MinConfidence)
	}
	q := `SELECT ` + correctionColumns + ` FROM corrections`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list corrections: %w", err)
	}
	defer rows.Close()

	var out []models.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// LinkCorrection records the memory entry generated from a correction.
func (db *DB) LinkCorrection(id int64, entryID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`UPDATE corrections SET memory_entry_id = ? WHERE id = ?`, entryID, id)
	if err != nil {
		return fmt.Errorf("store: link correction: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("correction %d", id))
}

func scanCorrection(r rowScanner) (*models.Correction, error) {
	var (
		c                      models.Correction
		category, paths, sourc string
	)
	err := r.Scan(&c.ID, &c.Incorrect, &c.Correct, &category, &paths, &c.Confidence,
		&sourc, &c.SessionID, &c.MemoryEntryID, &c.Hash, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan correction: %w", err)
	}
	c.Category = models.Category(category)
	c.Source = models.SourceChannel(sourc)
	if err := unmarshalList("paths", paths, &c.Paths); err != nil {
		return nil, fmt.Errorf("store: correction %d: %w", c.ID, err)
	}
	return &c, nil
}
