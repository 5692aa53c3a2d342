package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the part of pgxpool.Pool the store uses. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	insertAddressSQL = `INSERT INTO addresses (id, normalized, neighborhood, city, lat, lng, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (normalized) DO NOTHING RETURNING id`
	getAddressSQL    = `SELECT id, normalized, neighborhood, city, lat, lng, status, created_at FROM addresses WHERE normalized = $1`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS addresses (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	normalized   TEXT NOT NULL UNIQUE,
	neighborhood TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	lat          DOUBLE PRECISION NOT NULL,
	lng          DOUBLE PRECISION NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) (Outcome, *Record, error) {
	if rec.Normalized == "" {
		return "", nil, ErrEmptyKey
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var id string
	err := s.pool.QueryRow(ctx, insertAddressSQL,
		rec.ID, rec.Normalized, rec.Neighborhood, rec.City, rec.Lat, rec.Lng, rec.Status, rec.CreatedAt,
	).Scan(&id)
	switch {
	case err == nil:
		return OutcomeInserted, &rec, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, getErr := s.Get(ctx, rec.Normalized)
		if getErr != nil {
			return "", nil, getErr
		}
		return OutcomeExisting, existing, nil
	default:
		return "", nil, eris.Wrapf(err, "postgres: upsert address %q", rec.Normalized)
	}
}

func (s *PostgresStore) Get(ctx context.Context, normalized string) (*Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, getAddressSQL, normalized).
		Scan(&rec.ID, &rec.Normalized, &rec.Neighborhood, &rec.City, &rec.Lat, &rec.Lng, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get address %q", normalized)
	}
	return &rec, nil
}
