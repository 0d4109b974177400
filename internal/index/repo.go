package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/vault"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID       string
	Path     string
	Title    string
	Checksum string
	Content  string
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Save replaces the whole persisted graph with v in a single transaction.
func (db *DB) Save(ctx context.Context, v *vault.Vault) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, stmt := range []string{`DELETE FROM links`, `DELETE FROM lookup`, `DELETE FROM notes`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index: clear: %w", err)
		}
	}
	if err := ftsClear(ctx, tx); err != nil {
		return err
	}

	noteStmt, err := tx.PrepareContext(ctx, `INSERT INTO notes (id, path, title, checksum, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare note insert: %w", err)
	}
	defer noteStmt.Close()

	ids := v.IDs()
	for _, id := range ids {
		n, _ := v.Get(id)
		if _, err := noteStmt.ExecContext(ctx, id.String(), n.Path, n.Title, checksum.Sum(n.Content), n.Content); err != nil {
			return fmt.Errorf("index: insert note %s: %w", n.Path, err)
		}
		if err := ftsInsert(ctx, tx, id.String(), n.Title, n.Content); err != nil {
			return err
		}
	}

	// Links go in after every note exists so the foreign keys hold.
	linkStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer linkStmt.Close()
	for _, id := range ids {
		for target, edge := range v.Links(id) {
			if _, err := linkStmt.ExecContext(ctx, id.String(), target.String(), edge.String()); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	lookupStmt, err := tx.PrepareContext(ctx, `INSERT INTO lookup (key, id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare lookup insert: %w", err)
	}
	defer lookupStmt.Close()
	for key, id := range v.Keys() {
		if _, err := lookupStmt.ExecContext(ctx, key, id.String()); err != nil {
			return fmt.Errorf("index: insert lookup %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// GetNote returns the persisted note with the given id.
func (db *DB) GetNote(ctx context.Context, id string) (*NoteRow, error) {
	var r NoteRow
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, path, title, checksum, content FROM notes WHERE id = ?`, id,
	).Scan(&r.ID, &r.Path, &r.Title, &r.Checksum, &r.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &r, nil
}

// Lookup returns the note id stored for a title or path.
func (db *DB) Lookup(ctx context.Context, key string) (string, error) {
	var id string
	err := db.conn.QueryRowContext(ctx, `SELECT id FROM lookup WHERE key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("index: lookup: %w", err)
	}
	return id, nil
}

// Backlinks returns the ids of all notes linking to id, ordered by path.
// An unknown id yields an empty result.
func (db *DB) Backlinks(ctx context.Context, id string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT l.source FROM links l
		JOIN notes n ON n.id = l.source
		WHERE l.target = ? AND l.type = 'connected'
		ORDER BY n.path
	`, id)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
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
