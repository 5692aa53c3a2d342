package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS addresses (
	id           TEXT PRIMARY KEY,
	normalized   TEXT NOT NULL UNIQUE,
	neighborhood TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	lat          REAL NOT NULL,
	lng          REAL NOT NULL,
	status       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) (Outcome, *Record, error) {
	if rec.Normalized == "" {
		return "", nil, ErrEmptyKey
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO addresses (id, normalized, neighborhood, city, lat, lng, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (normalized) DO NOTHING`,
		rec.ID, rec.Normalized, rec.Neighborhood, rec.City, rec.Lat, rec.Lng, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return "", nil, eris.Wrapf(err, "sqlite: upsert address %q", rec.Normalized)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return OutcomeInserted, &rec, nil
	}

	existing, err := s.Get(ctx, rec.Normalized)
	if err != nil {
		return "", nil, err
	}
	return OutcomeExisting, existing, nil
}

func (s *SQLiteStore) Get(ctx context.Context, normalized string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, normalized, neighborhood, city, lat, lng, status, created_at FROM addresses WHERE normalized = ?`,
		normalized,
	)

	var rec Record
	err := row.Scan(&rec.ID, &rec.Normalized, &rec.Neighborhood, &rec.City, &rec.Lat, &rec.Lng, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get address %q", normalized)
	}
	return &rec, nil
}
