// Package mapindex keeps a small SQLite ledger of finished conversions
// so repeated runs can be listed and deduplicated by terrain digest.
// Indexing is optional and never fails a conversion.
package mapindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Index struct {
	db *sql.DB
}

// Conversion is one indexed run.
type Conversion struct {
	Artifact   string
	Digest     string
	Width      int
	Height     int
	Entities   int
	DurationMs int64
	CreatedAt  string
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("mapindex: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("mapindex: %s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	artifact    TEXT NOT NULL,
	digest      TEXT NOT NULL,
	width       INTEGER NOT NULL,
	height      INTEGER NOT NULL,
	entities    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversions_digest ON conversions(digest);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mapindex: init schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

// Record appends one conversion row.
func (ix *Index) Record(ctx context.Context, rec Conversion) error {
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO conversions (artifact, digest, width, height, entities, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Artifact, rec.Digest, rec.Width, rec.Height, rec.Entities, rec.DurationMs, rec.CreatedAt)
	return err
}

// Recent returns the newest rows, most recent first.
func (ix *Index) Recent(ctx context.Context, limit int) ([]Conversion, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT artifact, digest, width, height, entities, duration_ms, created_at
		 FROM conversions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(&c.Artifact, &c.Digest, &c.Width, &c.Height, &c.Entities, &c.DurationMs, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SeenDigest reports whether a conversion with the given terrain digest
// was already recorded.
func (ix *Index) SeenDigest(ctx context.Context, digest string) (bool, error) {
	var n int
	err := ix.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM conversions WHERE digest = ?`, digest).Scan(&n)
	return n > 0, err
}
