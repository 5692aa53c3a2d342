package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geolote/internal/address"
	"github.com/sells-group/geolote/internal/config"
	"github.com/sells-group/geolote/internal/hint"
	"github.com/sells-group/geolote/internal/match"
	"github.com/sells-group/geolote/internal/resilience"
	"github.com/sells-group/geolote/internal/resolver"
	"github.com/sells-group/geolote/internal/sheet"
	"github.com/sells-group/geolote/internal/store"
	"github.com/sells-group/geolote/internal/strategy"
	anthropicpkg "github.com/sells-group/geolote/pkg/anthropic"
	"github.com/sells-group/geolote/pkg/geocode"
)

// resolverEnv holds the wired resolver and the resources behind it, for the
// serve and resolve commands.
type resolverEnv struct {
	Resolver *resolver.Resolver
	// Client is the cached, permit-limited geocoder the resolver uses.
	Client geocode.Client
	Store  store.Store // may be nil

	closers []func() error
}

// Close releases resources held by the environment.
func (e *resolverEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Debug("close resource", zap.Error(err))
		}
	}
}

// initResolver builds the resolver from cfg. Offline mode replaces the HERE
// client with one that reports NO_KEY for every query. Callers should defer
// env.Close().
func initResolver(ctx context.Context, c *config.Config, offline bool) (*resolverEnv, error) {
	env := &resolverEnv{}

	rules, err := address.LoadRules(c.Rules.Path)
	if err != nil {
		return nil, err
	}
	plot := address.NewPlotExtractor(c.Plot.Ceiling, rules.InvalidValues)
	normalizer := address.NewNormalizer(rules, plot)
	selector := match.NewSelector(matchConfig(c.Match), plot)
	builder := strategy.NewBuilder(c.Strategy.Region)

	cache, closeCache, err := initCache(ctx, c.Cache)
	if err != nil {
		return nil, err
	}
	if closeCache != nil {
		env.closers = append(env.closers, closeCache)
	}

	timeout := time.Duration(c.Here.TimeoutSecs) * time.Second
	limited := geocode.NewLimitedClient(baseClient(c.Here, offline), c.Batch.MaxConcurrentCalls, timeout)
	env.Client = geocode.NewCachedClient(limited, cache)

	opts := []resolver.Option{
		resolver.WithMaxOffset(c.Neighbor.MaxOffset),
		resolver.WithDefaultCity(c.Batch.DefaultCity),
	}
	if c.Anthropic.Enabled && !offline {
		hintTimeout := time.Duration(c.Anthropic.TimeoutSecs) * time.Second
		ac := anthropicpkg.NewClient(c.Anthropic.Key, anthropicpkg.WithTimeout(hintTimeout))
		opts = append(opts, resolver.WithHints(hint.NewAnthropic(ac, c.Anthropic.Model, hintTimeout)))
		zap.L().Info("address hints enabled", zap.String("model", c.Anthropic.Model))
	}

	env.Resolver = resolver.New(env.Client, normalizer, builder, selector, opts...)

	st, err := store.Open(ctx, store.Config{
		Driver:      c.Store.Driver,
		DatabaseURL: c.Store.DatabaseURL,
		Pool:        store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns},
	})
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "open store")
	}
	if st != nil {
		env.Store = st
		env.closers = append(env.closers, st.Close)
	}

	zap.L().Debug("resolver ready",
		zap.Bool("offline", offline),
		zap.String("cache", c.Cache.Driver),
		zap.String("store", c.Store.Driver),
		zap.Int("max_concurrent_calls", c.Batch.MaxConcurrentCalls),
	)
	return env, nil
}

func baseClient(c config.HereConfig, offline bool) geocode.Client {
	if offline {
		return geocode.ClientFunc(func(context.Context, string) ([]geocode.Candidate, geocode.Status) {
			return nil, geocode.StatusNoKey
		})
	}
	return geocode.NewClient(c.APIKey,
		geocode.WithBaseURL(c.BaseURL),
		geocode.WithCountry(c.Country),
		geocode.WithLang(c.Lang),
		geocode.WithRateLimit(c.RateLimit),
		geocode.WithRetry(resilience.RetryFromConfig("here", c.MaxRetries, 0)),
		geocode.WithCircuitBreaker(resilience.NewCircuitBreaker("here", resilience.CircuitFromConfig(c.BreakerThreshold, c.BreakerResetSecs))),
		geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}),
	)
}

// initCache returns the configured query cache and its closer, if any.
func initCache(ctx context.Context, c config.CacheConfig) (geocode.Cache, func() error, error) {
	switch c.Driver {
	case "redis":
		rc, err := geocode.NewRedisCache(ctx, c.RedisURL, c.Prefix, time.Duration(c.TTLHours)*time.Hour)
		if err != nil {
			return nil, nil, eris.Wrap(err, "init redis cache")
		}
		return rc, rc.Close, nil
	case "none":
		return geocode.NoopCache{}, nil, nil
	default:
		mc, err := geocode.NewMemoryCache(c.Size)
		if err != nil {
			return nil, nil, eris.Wrap(err, "init memory cache")
		}
		return mc, nil, nil
	}
}

func matchConfig(c config.MatchConfig) match.Config {
	return match.Config{
		CitySimilarity:      c.CitySimilarity,
		StreetSimilarity:    c.StreetSimilarity,
		ShortcutStreet:      c.ShortcutStreet,
		NeighborhoodCutoff:  c.NeighborhoodCutoff,
		MinStreetLen:        c.MinStreetLen,
		ScoreQuadra:         c.ScoreQuadra,
		ScoreStreet:         c.ScoreStreet,
		PenaltyNeighborhood: c.PenaltyNeighborhood,
		Algorithm:           c.Algorithm,
	}
}

func sheetOptions(c *config.Config) sheet.Options {
	return sheet.Options{
		Columns: sheet.Columns{
			Address:      c.Sheet.AddressColumn,
			Neighborhood: c.Sheet.NeighborhoodColumn,
			City:         c.Sheet.CityColumn,
			PostalCode:   c.Sheet.PostalCodeColumn,
		},
		SheetIndex:  c.Sheet.SheetIndex,
		DefaultCity: c.Batch.DefaultCity,
	}
}
