package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"
)

const driverLibsql = "libsql"

const libsqlSchema = `CREATE TABLE IF NOT EXISTS tpm_windows (
	model TEXT PRIMARY KEY,
	window_start REAL NOT NULL,
	tokens INTEGER NOT NULL DEFAULT 0
);`

// LibSQLStore keeps windows in a libsql (SQLite-compatible) database, either
// a local file or a remote libsql:// URL.
type LibSQLStore struct {
	db *sql.DB
}

// OpenLibSQLStore opens the database at path and ensures the schema exists.
func OpenLibSQLStore(ctx context.Context, path string) (*LibSQLStore, error) {
	dsn, err := buildLibsqlDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	// A :memory: database is per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	if _, err := db.ExecContext(ctx, libsqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate libsql store: %w", err)
	}
	return &LibSQLStore{db: db}, nil
}

// Load reads all windows.
func (s *LibSQLStore) Load(ctx context.Context) (map[string]Window, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT model, window_start, tokens FROM tpm_windows`)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	windows := make(map[string]Window)
	for rows.Next() {
		var (
			model string
			r     record
		)
		if err := rows.Scan(&model, &r.WindowStart, &r.Tokens); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		windows[model] = fromRecord(model, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate windows: %w", err)
	}
	return windows, nil
}

// Save replaces all windows in one transaction.
func (s *LibSQLStore) Save(ctx context.Context, windows map[string]Window) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tpm_windows`); err != nil {
		return fmt.Errorf("clear windows: %w", err)
	}
	for model, w := range windows {
		r := toRecord(w)
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO tpm_windows (model, window_start, tokens) VALUES (?, ?, ?)`,
			model, r.WindowStart, r.Tokens,
		); err != nil {
			return fmt.Errorf("insert window %s: %w", model, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *LibSQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildLibsqlDSN(path string) (string, error) {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return "", errors.New("libsql path is required")
	case path == ":memory:":
		return path, nil
	case strings.HasPrefix(path, "libsql:"), strings.HasPrefix(path, "http:"), strings.HasPrefix(path, "https:"):
		return path, nil
	case strings.HasPrefix(path, "file:"):
		if err := os.MkdirAll(filepath.Dir(strings.TrimPrefix(path, "file:")), 0o755); err != nil {
			return "", fmt.Errorf("creating store directory: %w", err)
		}
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating store directory: %w", err)
	}
	return "file:" + filepath.Clean(path), nil
}
