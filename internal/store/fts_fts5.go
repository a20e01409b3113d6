//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/memman/internal/models"
)

// memory_fts is an external-content index over memory_entries, kept
// current by triggers.
func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
			content,
			heading,
			tags,
			content = 'memory_entries',
			content_rowid = 'rowid',
			tokenize = 'unicode61 remove_diacritics 2'
		);

		CREATE TRIGGER IF NOT EXISTS memory_fts_ai AFTER INSERT ON memory_entries BEGIN
			INSERT INTO memory_fts(rowid, content, heading, tags)
			VALUES (new.rowid, new.content, new.heading, new.tags);
		END;

		CREATE TRIGGER IF NOT EXISTS memory_fts_ad AFTER DELETE ON memory_entries BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content, heading, tags)
			VALUES ('delete', old.rowid, old.content, old.heading, old.tags);
		END;

		CREATE TRIGGER IF NOT EXISTS memory_fts_au AFTER UPDATE OF content, heading, tags ON memory_entries BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content, heading, tags)
			VALUES ('delete', old.rowid, old.content, old.heading, old.tags);
			INSERT INTO memory_fts(rowid, content, heading, tags)
			VALUES (new.rowid, new.content, new.heading, new.tags);
		END;
	`)
	return err
}

// SearchEntries runs an FTS5 query over entry content, headings, and tags,
// best match first. Each whitespace-separated term is quoted, so the query
// is matched literally rather than parsed as FTS syntax.
func (db *DB) SearchEntries(query string, limit int) ([]models.MemoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT `+entryColumns+`
		FROM memory_entries
		JOIN (SELECT rowid AS rid, rank AS r FROM memory_fts WHERE memory_fts MATCH ?) f
		  ON memory_entries.rowid = f.rid
		ORDER BY f.r
		LIMIT ?
	`, match, limit)
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

func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
