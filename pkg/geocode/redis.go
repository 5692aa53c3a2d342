package geocode

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "geolote:geocode:"

// RedisCache shares cached candidate lists across processes. Entries are
// msgpack-encoded under prefix + sha256(query). Redis failures degrade to
// cache misses.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse redis url")
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "geocode: ping redis")
	}

	return NewRedisCacheWithClient(client, prefix, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) key(query string) string {
	return r.prefix + cacheKey(query)
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, query string) ([]Candidate, bool) {
	data, err := r.client.Get(ctx, r.key(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		zap.L().Warn("redis cache get failed", zap.String("query", query), zap.Error(err))
		return nil, false
	}

	cands, err := decodeCandidates(data)
	if err != nil {
		zap.L().Warn("redis cache entry unreadable", zap.String("query", query), zap.Error(err))
		return nil, false
	}
	return cands, true
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, query string, candidates []Candidate) {
	data, err := encodeCandidates(candidates)
	if err != nil {
		zap.L().Warn("redis cache encode failed", zap.String("query", query), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.key(query), data, r.ttl).Err(); err != nil {
		zap.L().Warn("redis cache set failed", zap.String("query", query), zap.Error(err))
	}
}

// Close releases the underlying connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func encodeCandidates(cands []Candidate) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(cands); err != nil {
		return nil, eris.Wrap(err, "geocode: encode candidates")
	}
	return buf.Bytes(), nil
}

func decodeCandidates(data []byte) ([]Candidate, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var cands []Candidate
	if err := dec.Decode(&cands); err != nil {
		return nil, eris.Wrap(err, "geocode: decode candidates")
	}
	return cands, nil
}
