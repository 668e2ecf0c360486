package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDatabase is the database file name inside the artifact directory.
const SQLiteDatabase = "index.db"

// SQLiteStore keeps all artifacts as rows of one table. A save replaces the
// three rows inside a single transaction.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) dir/index.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ioFailure("open", err)
	}
	path := filepath.Join(dir, SQLiteDatabase)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ioFailure("open", fmt.Errorf("failed to open database: %w", err))
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, ioFailure("open", err)
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS artifacts (
			name TEXT PRIMARY KEY,
			build_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Location returns the database path.
func (s *SQLiteStore) Location() string { return s.path }

// Exists reports whether all artifact rows are present.
func (s *SQLiteStore) Exists(ctx context.Context) bool {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artifacts WHERE name IN (?, ?, ?)",
		VectorizerArtifact, MatrixArtifact, CorpusArtifact,
	).Scan(&n)
	return err == nil && n == len(ArtifactNames)
}

// Save replaces every artifact row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, a *Artifacts) error {
	payloads, err := encodeArtifacts(a)
	if err != nil {
		return ioFailure("save", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioFailure("save", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO artifacts (name, build_id, payload, updated_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return ioFailure("save", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, name := range ArtifactNames {
		if _, err := stmt.ExecContext(ctx, name, a.BuildID, payloads[name], now); err != nil {
			return ioFailure("save", fmt.Errorf("%s: %w", name, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return ioFailure("save", err)
	}
	return nil
}

// Load reads and cross-checks all artifact rows.
func (s *SQLiteStore) Load(ctx context.Context) (*Artifacts, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, payload FROM artifacts")
	if err != nil {
		return nil, ioFailure("load", err)
	}
	defer rows.Close()

	payloads := make(map[string][]byte, len(ArtifactNames))
	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, ioFailure("load", err)
		}
		payloads[name] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, ioFailure("load", err)
	}

	for _, name := range ArtifactNames {
		if _, ok := payloads[name]; !ok {
			return nil, ioFailure("load", fmt.Errorf("%s: %w", name, os.ErrNotExist))
		}
	}
	return decodeArtifacts(payloads)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
