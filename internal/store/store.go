// Package store keeps resolved addresses keyed by their normalized text so a
// confirmed location can be reused. It is best effort: resolution never
// depends on it.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Outcome reports what Upsert did.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeExisting Outcome = "existing"
)

// Record is one stored address.
type Record struct {
	ID           string    `json:"id"`
	Normalized   string    `json:"normalized_address"`
	Neighborhood string    `json:"neighborhood"`
	City         string    `json:"city"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists records keyed by exact normalized-address equality.
type Store interface {
	// Upsert inserts rec unless its normalized address is already stored, in
	// which case the stored record is returned untouched.
	Upsert(ctx context.Context, rec Record) (Outcome, *Record, error)
	// Get returns the record for normalized, or nil when there is none.
	Get(ctx context.Context, normalized string) (*Record, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ErrEmptyKey rejects records without a normalized address.
var ErrEmptyKey = eris.New("store: empty normalized address")

// Config selects and configures a backend.
type Config struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open returns the configured backend, migrated. Driver "none" or "" yields
// a nil Store and no error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "geolote.db"
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
