package geocode

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateCodec_RoundTrip(t *testing.T) {
	data, err := encodeCandidates(sampleCandidates())
	require.NoError(t, err)

	got, err := decodeCandidates(data)
	require.NoError(t, err)
	assert.Equal(t, sampleCandidates(), got)
}

func TestDecodeCandidates_Garbage(t *testing.T) {
	_, err := decodeCandidates([]byte{0xc1})
	assert.Error(t, err)
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "", time.Hour)
	defer c.Close() //nolint:errcheck
	assert.Equal(t, DefaultRedisPrefix+cacheKey("RUA X"), c.key("RUA X"))
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	c := NewRedisCacheWithClient(client, "t:", time.Hour)
	defer c.Close() //nolint:errcheck

	c.Set(context.Background(), "RUA X", sampleCandidates())
	_, ok := c.Get(context.Background(), "RUA X")
	assert.False(t, ok)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not a url", "", time.Hour)
	assert.Error(t, err)
}

func TestRedisCache_Live(t *testing.T) {
	url := os.Getenv("GEOLOTE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("GEOLOTE_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	c, err := NewRedisCache(ctx, url, "geolote:test:"+uuid.NewString()+":", time.Minute)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	_, ok := c.Get(ctx, "RUA X")
	assert.False(t, ok)

	c.Set(ctx, "RUA X", sampleCandidates())
	got, ok := c.Get(ctx, "RUA X")
	require.True(t, ok)
	assert.Equal(t, sampleCandidates(), got)
}
