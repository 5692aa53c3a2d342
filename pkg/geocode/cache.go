package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache maps an exact query string to the candidates it produced.
// Implementations must be safe for concurrent use; last writer wins.
type Cache interface {
	Get(ctx context.Context, query string) ([]Candidate, bool)
	Set(ctx context.Context, query string, candidates []Candidate)
}

// cacheKey returns the SHA-256 hex of an exact query string.
func cacheKey(query string) string {
	h := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%x", h)
}

// MemoryCache is a bounded in-process LRU cache.
type MemoryCache struct {
	lru *lru.Cache[string, []Candidate]
}

// NewMemoryCache creates an LRU cache holding up to size queries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	c, err := lru.New[string, []Candidate](size)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: memory cache")
	}
	return &MemoryCache{lru: c}, nil
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, query string) ([]Candidate, bool) {
	return m.lru.Get(query)
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, query string, candidates []Candidate) {
	m.lru.Add(query, candidates)
}

// Len returns the number of cached queries.
func (m *MemoryCache) Len() int { return m.lru.Len() }

// Purge empties the cache.
func (m *MemoryCache) Purge() { m.lru.Purge() }

// NoopCache never stores anything.
type NoopCache struct{}

// Get implements Cache.
func (NoopCache) Get(context.Context, string) ([]Candidate, bool) { return nil, false }

// Set implements Cache.
func (NoopCache) Set(context.Context, string, []Candidate) {}

// CachedClient is a read-through cache in front of another Client. Only OK
// responses are stored.
type CachedClient struct {
	next  Client
	cache Cache
}

// NewCachedClient wraps next with cache. A nil cache disables caching.
func NewCachedClient(next Client, cache Cache) *CachedClient {
	if cache == nil {
		cache = NoopCache{}
	}
	return &CachedClient{next: next, cache: cache}
}

// Geocode implements Client.
func (c *CachedClient) Geocode(ctx context.Context, query string) ([]Candidate, Status) {
	if cands, ok := c.cache.Get(ctx, query); ok {
		zap.L().Debug("geocode cache hit", zap.String("query", query))
		return cands, StatusOK
	}

	cands, status := c.next.Geocode(ctx, query)
	if status == StatusOK {
		c.cache.Set(ctx, query, cands)
	}
	return cands, status
}
