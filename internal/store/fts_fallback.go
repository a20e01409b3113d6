//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/memman/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; SearchEntries scans memory_entries with LIKE.
	return nil
}

// SearchEntries matches entries whose content, heading, or tags contain
// every whitespace-separated term, most recently updated first.
func (db *DB) SearchEntries(query string, limit int) ([]models.MemoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	var where []string
	var args []any
	for _, t := range terms {
		like := "%" + t + "%"
		where = append(where, "(content LIKE ? OR heading LIKE ? OR tags LIKE ?)")
		args = append(args, like, like, like)
	}
	args = append(args, limit)
	rows, err := db.conn.Query(`SELECT `+entryColumns+` FROM memory_entries WHERE `+
		strings.Join(where, " AND ")+` ORDER BY updated_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
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
