// Package state persists which directories a browser had expanded so a new
// session can reopen them.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS expanded (
	root       TEXT    NOT NULL,
	path       TEXT    NOT NULL,
	depth      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (root, path)
)`

// Store records expanded directories per tree root.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" keeps state in
// memory.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("state: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	// One connection: an in-memory database only exists on it, and writers
	// never contend.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("state: set WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarkExpanded records dir under root as expanded.
func (s *Store) MarkExpanded(ctx context.Context, root, dir string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expanded (root, path, depth, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (root, path) DO UPDATE SET updated_at = excluded.updated_at`,
		root, dir, depthOf(root, dir), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("state: mark expanded %s: %w", dir, err)
	}
	return nil
}

// MarkCollapsed forgets dir and every directory below it.
func (s *Store) MarkCollapsed(ctx context.Context, root, dir string) error {
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM expanded
		 WHERE root = ? AND (path = ? OR substr(path, 1, length(?)) = ?)`,
		root, dir, prefix, prefix)
	if err != nil {
		return fmt.Errorf("state: mark collapsed %s: %w", dir, err)
	}
	return nil
}

// Expanded lists the directories recorded under root, parents before their
// children.
func (s *Store) Expanded(ctx context.Context, root string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM expanded WHERE root = ? ORDER BY depth, path`, root)
	if err != nil {
		return nil, fmt.Errorf("state: query expanded: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("state: scan: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Forget drops every record for root.
func (s *Store) Forget(ctx context.Context, root string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM expanded WHERE root = ?`, root); err != nil {
		return fmt.Errorf("state: forget %s: %w", root, err)
	}
	return nil
}

// depthOf counts path segments of dir below root.
func depthOf(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
