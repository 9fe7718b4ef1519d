// Package toolserver implements the SQLite-backed MCP tool server exposed
// over a stdio transport.
package toolserver

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is where the sample database lives unless overridden.
const DefaultDBPath = "data/sample.db"

// Store wraps the embedded relational database backing the tool handlers.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating parent directories if needed) the SQLite database
// at path.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Bootstrap creates the sample users table and seed rows on first run.
// Idempotent: an existing table is left untouched.
func (s *Store) Bootstrap() error {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='users'",
	).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			age INTEGER NOT NULL CHECK (age > 0),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	seed := []struct {
		name  string
		email string
		age   int
	}{
		{"Alice Johnson", "alice@example.com", 28},
		{"Bob Smith", "bob@example.com", 34},
		{"Carol Davis", "carol@example.com", 26},
		{"David Wilson", "david@example.com", 42},
		{"Eva Brown", "eva@example.com", 31},
	}
	for _, u := range seed {
		if _, err := s.db.Exec(
			"INSERT INTO users (name, email, age) VALUES (?, ?, ?)",
			u.name, u.email, u.age,
		); err != nil {
			return fmt.Errorf("failed to seed users: %w", err)
		}
	}

	return nil
}

// queryRows runs query and materializes every row as a column-keyed map.
func (s *Store) queryRows(query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// quoteIdent quotes a SQLite identifier for contexts such as PRAGMA that do
// not accept bound parameters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableExists reports whether a user table with the given name exists.
func (s *Store) tableExists(name string) (bool, error) {
	var found string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
