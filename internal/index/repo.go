package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/slug"
)

// Document is one indexed content file.
type Document struct {
	Path      string
	Category  models.Category
	ItemID    string
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult is one search hit.
type SearchResult struct {
	Path     string          `json:"path"`
	Category models.Category `json:"category"`
	ItemID   string          `json:"id"`
	Title    string          `json:"title"`
	Snippet  string          `json:"snippet"`
}

// UpsertDocument inserts or replaces a document, its FTS entry and its
// mentions within a transaction. Mentions are stored by slug so [[Elara]]
// and [[elara]] resolve to the same name.
func (db *DB) UpsertDocument(d Document, body string, mentions []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO documents (path, category, item_id, title, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			category   = excluded.category,
			item_id    = excluded.item_id,
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, string(d.Category), d.ItemID, d.Title, d.Checksum, body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, d, body); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM mentions WHERE source = ?`, d.Path)
	if len(mentions) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO mentions (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare mention insert: %w", err)
		}
		defer stmt.Close()
		for _, m := range mentions {
			if _, err := stmt.Exec(d.Path, slug.Make(m)); err != nil {
				return fmt.Errorf("index: insert mention: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and its mentions.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM mentions WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or "" if it is not
// indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// MentionedIn returns the paths of documents that mention name, in path
// order.
func (db *DB) MentionedIn(name string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM mentions WHERE target = ? ORDER BY source`, slug.Make(name))
	if err != nil {
		return nil, fmt.Errorf("index: mentioned in: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var c string
		if err := rows.Scan(&r.Path, &c, &r.ItemID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		r.Category = models.Category(c)
		out = append(out, r)
	}
	return out, rows.Err()
}
