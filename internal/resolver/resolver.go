// Package resolver turns one raw address row into coordinates: it
// normalizes, walks the query strategies, scores candidates, and probes
// neighboring lots before giving up.
package resolver

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geolote/internal/address"
	"github.com/sells-group/geolote/internal/hint"
	"github.com/sells-group/geolote/internal/match"
	"github.com/sells-group/geolote/internal/model"
	"github.com/sells-group/geolote/internal/strategy"
	"github.com/sells-group/geolote/pkg/geocode"
)

// DefaultMaxOffset bounds the neighbor-lot probe to ±5.
const DefaultMaxOffset = 5

// StrategyNeighbor tags results found by the neighbor-lot probe.
const StrategyNeighbor = "NEIGHBOR"

// Resolver resolves single rows. It is safe for concurrent use.
type Resolver struct {
	normalizer  *address.Normalizer
	builder     *strategy.Builder
	selector    *match.Selector
	client      geocode.Client
	hints       hint.Provider
	maxOffset   int
	defaultCity string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHints enriches incomplete addresses with p before queries are built.
func WithHints(p hint.Provider) Option {
	return func(r *Resolver) {
		if p != nil {
			r.hints = p
		}
	}
}

// WithMaxOffset sets how far the neighbor probe walks from the target lote.
// Zero disables the probe.
func WithMaxOffset(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.maxOffset = n
		}
	}
}

// WithDefaultCity is used for rows without a city.
func WithDefaultCity(city string) Option {
	return func(r *Resolver) {
		r.defaultCity = strings.TrimSpace(city)
	}
}

// New creates a Resolver. client is the only required collaborator; nil
// components get their defaults.
func New(client geocode.Client, normalizer *address.Normalizer, builder *strategy.Builder, selector *match.Selector, opts ...Option) *Resolver {
	if normalizer == nil {
		normalizer = address.NewNormalizer(nil, nil)
	}
	if builder == nil {
		builder = strategy.NewBuilder("")
	}
	if selector == nil {
		selector = match.NewSelector(match.DefaultConfig(), nil)
	}
	r := &Resolver{
		normalizer: normalizer,
		builder:    builder,
		selector:   selector,
		client:     client,
		hints:      hint.Noop{},
		maxOffset:  DefaultMaxOffset,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalizer returns the normalizer used for every row.
func (r *Resolver) Normalizer() *address.Normalizer { return r.normalizer }

// row is the per-row working state.
type row struct {
	rec    model.RawAddressRecord
	addr   address.NormalizedAddress
	city   string
	target match.Target
	log    *zap.Logger

	best      *model.MatchResult
	bestScore int
}

// Resolve runs the row state machine. It never returns an error: every
// outcome, including total failure, is a MatchResult status.
func (r *Resolver) Resolve(ctx context.Context, rec model.RawAddressRecord) model.MatchResult {
	addr, err := r.normalizer.Normalize(rec.Address, rec.Neighborhood)
	if addr.Condominium {
		return model.CondominiumResult(rec.Index, addr.String())
	}

	city := strings.TrimSpace(rec.City)
	if city == "" {
		city = r.defaultCity
	}
	neighborhood := strings.TrimSpace(rec.Neighborhood)

	if err != nil || addr.Quadra == "" || addr.Lote == "" {
		addr, neighborhood = r.enrich(ctx, rec.Address, addr, neighborhood)
	}

	w := &row{
		rec:    rec,
		addr:   addr,
		city:   city,
		target: match.NewTarget(addr, neighborhood, city),
		log: zap.L().With(
			zap.Int("row", rec.Index),
			zap.String("normalized", addr.String()),
		),
	}
	if addr.Street == "" {
		w.log.Debug("address could not be normalized", zap.Error(err))
		return model.FailedResult(rec.Index, "")
	}

	for _, st := range r.builder.Build(addr, neighborhood, city) {
		if ctx.Err() != nil {
			break
		}
		if res, exact := r.try(ctx, w, st); exact {
			return res
		}
	}

	if res, ok := r.probeNeighbors(ctx, w); ok {
		return res
	}

	if w.best != nil {
		return *w.best
	}
	return model.FailedResult(rec.Index, addr.String())
}

// try runs one strategy. It returns exact=true when the result reached the
// top tier; lesser results are retained on w when they beat the best so far.
func (r *Resolver) try(ctx context.Context, w *row, st strategy.Strategy) (model.MatchResult, bool) {
	cands, status := r.client.Geocode(ctx, st.Query)
	if status != geocode.StatusOK || len(cands) == 0 {
		w.log.Debug("strategy skipped",
			zap.String("strategy", string(st.Tag)),
			zap.String("query", st.Query),
			zap.String("status", string(status)),
		)
		return model.MatchResult{}, false
	}

	sel, ok := r.selector.Select(cands, w.target)
	if !ok {
		w.log.Debug("no candidate survived",
			zap.String("strategy", string(st.Tag)),
			zap.Int("candidates", len(cands)),
		)
		return model.MatchResult{}, false
	}

	res := toResult(w, sel, string(st.Tag))
	if sel.Exact() {
		w.log.Debug("exact match", zap.String("strategy", string(st.Tag)))
		return res, true
	}

	if w.best == nil || sel.Score > w.bestScore {
		w.best = &res
		w.bestScore = sel.Score
	}
	return model.MatchResult{}, false
}

// probeNeighbors walks lote-1, lote+1, ... lote±maxOffset and accepts the
// first adjacent lot that matches at the top tier with the same quadra.
func (r *Resolver) probeNeighbors(ctx context.Context, w *row) (model.MatchResult, bool) {
	if w.addr.Quadra == "" || w.addr.Lote == "" || r.maxOffset == 0 {
		return model.MatchResult{}, false
	}
	lote, err := strconv.Atoi(w.addr.Lote)
	if err != nil {
		return model.MatchResult{}, false
	}

	for _, offset := range Offsets(r.maxOffset) {
		if ctx.Err() != nil {
			break
		}
		shifted := lote + offset
		if shifted <= 0 {
			continue
		}

		query := strategy.Neighbor(w.addr.Street, w.addr.Quadra, shifted, w.target.Neighborhood, w.city)
		cands, status := r.client.Geocode(ctx, query)
		if status != geocode.StatusOK || len(cands) == 0 {
			continue
		}

		sel, ok := r.selector.Select(cands, w.target)
		if !ok || !sel.Exact() || !sel.QuadraAgrees(w.addr.Quadra) {
			continue
		}

		w.log.Debug("neighbor lot matched", zap.Int("offset", offset))
		res := toResult(w, sel, StrategyNeighbor)
		res.Partial = true
		res.Status = model.NeighborStatus(offset)
		res.Offset = offset
		return res, true
	}
	return model.MatchResult{}, false
}

// Offsets returns -1, +1, -2, +2, ... -n, +n.
func Offsets(n int) []int {
	out := make([]int, 0, 2*n)
	for k := 1; k <= n; k++ {
		out = append(out, -k, k)
	}
	return out
}

// enrich fills whatever the normalizer missed from the hint provider. The
// hint never overrides a value the rules already found.
func (r *Resolver) enrich(ctx context.Context, raw string, addr address.NormalizedAddress, neighborhood string) (address.NormalizedAddress, string) {
	h, ok := r.hints.Hint(ctx, raw)
	if !ok || h == nil {
		return addr, neighborhood
	}

	if addr.Street == "" && h.Street != "" {
		if n, err := r.normalizer.Normalize(h.Street, ""); err == nil && !n.Condominium {
			addr.Street = n.Street
		}
	}
	if addr.Quadra == "" {
		addr.Quadra = h.Quadra
	}
	if addr.Lote == "" && addr.Quadra != "" {
		addr.Lote = h.Lote
	}
	if neighborhood == "" {
		neighborhood = h.District
	}
	return addr, neighborhood
}

func toResult(w *row, sel match.Selection, strategyTag string) model.MatchResult {
	return model.MatchResult{
		Index:      w.rec.Index,
		Lat:        model.Coord(sel.Candidate.Position.Lat),
		Lng:        model.Coord(sel.Candidate.Position.Lng),
		Partial:    sel.Partial,
		Status:     sel.Status,
		Normalized: w.addr.String(),
		Strategy:   strategyTag,
	}
}
