package resolver

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geolote/internal/model"
	"github.com/sells-group/geolote/internal/store"
)

// DefaultMaxRows caps the rows in flight at once. Outbound calls are bounded
// separately by the geocode client's permits.
const DefaultMaxRows = 64

// Summary counts batch outcomes by category.
type Summary struct {
	Total       int           `json:"total"`
	Found       int           `json:"found"`
	Partial     int           `json:"partial"`
	Condominium int           `json:"condominium"`
	NotFound    int           `json:"not_found"`
	Duration    time.Duration `json:"duration_ns"`
}

// BatchOptions tunes ResolveBatch.
type BatchOptions struct {
	// MaxRows bounds concurrently resolving rows. Zero uses DefaultMaxRows.
	MaxRows int
	// Store receives every exact match. Nil disables persistence.
	Store store.Store
	// OnRow is called after each row completes, from the row's goroutine.
	OnRow func(res model.MatchResult)
}

// ResolveBatch resolves every record concurrently. results[i] always belongs
// to records[i], whatever order the rows finished in.
func (r *Resolver) ResolveBatch(ctx context.Context, records []model.RawAddressRecord, opts BatchOptions) ([]model.MatchResult, Summary) {
	start := time.Now()
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	results := make([]model.MatchResult, len(records))
	var found, partial, condo, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(maxRows)
	for i, rec := range records {
		g.Go(func() error {
			res := r.Resolve(ctx, rec)
			res.Index = rec.Index
			results[i] = res

			switch res.Category() {
			case model.CategoryFound:
				found.Add(1)
				r.persist(ctx, opts.Store, rec, res)
			case model.CategoryPartial:
				partial.Add(1)
			case model.CategoryCondominium:
				condo.Add(1)
			default:
				failed.Add(1)
			}

			if opts.OnRow != nil {
				opts.OnRow(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{
		Total:       len(records),
		Found:       int(found.Load()),
		Partial:     int(partial.Load()),
		Condominium: int(condo.Load()),
		NotFound:    int(failed.Load()),
		Duration:    time.Since(start),
	}
	zap.L().Info("batch resolved",
		zap.Int("total", sum.Total),
		zap.Int("exact", sum.Found),
		zap.Int("partial", sum.Partial),
		zap.Int("condominium", sum.Condominium),
		zap.Int("failed", sum.NotFound),
		zap.Duration("duration", sum.Duration),
	)
	return results, sum
}

// persist offers an exact match to the store. Failures are logged only.
func (r *Resolver) persist(ctx context.Context, st store.Store, rec model.RawAddressRecord, res model.MatchResult) {
	if st == nil || res.Normalized == "" {
		return
	}
	outcome, _, err := st.Upsert(ctx, store.Record{
		Normalized:   res.Normalized,
		Neighborhood: rec.Neighborhood,
		City:         rec.City,
		Lat:          res.Lat.Value,
		Lng:          res.Lng.Value,
		Status:       string(res.Status),
	})
	if err != nil {
		zap.L().Warn("store resolved address failed",
			zap.Int("row", rec.Index),
			zap.String("normalized", res.Normalized),
			zap.Error(err),
		)
		return
	}
	zap.L().Debug("resolved address stored",
		zap.Int("row", rec.Index),
		zap.String("outcome", string(outcome)),
	)
}
