package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestRedis(t *testing.T, opts ...Option) (*miniredis.Miniredis, Backend) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedis(client, opts...)
}

func TestRedisSetGet(t *testing.T) {
	ctx := context.Background()
	_, b := newTestRedis(t)
	defer b.Close()

	found, val, err := b.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)

	assert.NoError(t, b.Set(ctx, "key", []byte("value"), time.Minute))
	found, val, err = b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), val)
}

func TestRedisTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, b := newTestRedis(t)
	defer b.Close()

	type item struct {
		ID   int    `msgpack:"id"`
		Name string `msgpack:"name"`
	}
	assert.NoError(t, Set(ctx, b, "item:7", item{ID: 7, Name: "bolt"}, time.Minute))
	found, got, err := Get[item](ctx, b, "item:7")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, item{ID: 7, Name: "bolt"}, got)
}

func TestRedisNativeExpiry(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestRedis(t)
	defer b.Close()

	assert.NoError(t, b.Set(ctx, "key", []byte("v"), time.Second))
	found, _, err := b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)

	mr.FastForward(2 * time.Second)
	found, _, err = b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisDefaultTTLApplied(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestRedis(t, WithDefaultTTL(time.Minute))
	defer b.Close()

	assert.NoError(t, b.Set(ctx, "key", []byte("v"), 0))
	ttl := mr.TTL("key")
	assert.Equal(t, time.Minute, ttl)
}

func TestRedisNoExpiry(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestRedis(t, WithDefaultTTL(time.Second))
	defer b.Close()

	assert.NoError(t, b.Set(ctx, "key", []byte("v"), NoExpiry))
	mr.FastForward(time.Hour)
	found, _, err := b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestRedisDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	_, b := newTestRedis(t)
	defer b.Close()

	assert.NoError(t, b.Set(ctx, "key", []byte("v"), time.Minute))
	assert.NoError(t, b.Delete(ctx, "key"))
	assert.NoError(t, b.Delete(ctx, "key"))
}

func TestRedisDeletePattern(t *testing.T) {
	ctx := context.Background()
	_, b := newTestRedis(t, WithScanCount(2))
	defer b.Close()

	for _, key := range []string{"user:1", "user:2", "user:3", "user:4", "user:5", "item:1"} {
		assert.NoError(t, b.Set(ctx, key, []byte("v"), time.Minute))
	}
	deleted, err := b.DeletePattern(ctx, "user:*")
	assert.NoError(t, err)
	assert.Equal(t, 5, deleted)

	found, _, _ := b.Get(ctx, "item:1")
	assert.True(t, found)
	found, _, _ = b.Get(ctx, "user:3")
	assert.False(t, found)
}

func TestRedisPrefixNamespacing(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestRedis(t, WithPrefix("app"))
	defer b.Close()

	assert.NoError(t, b.Set(ctx, "user:1", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("app:user:1"))

	found, val, err := b.Get(ctx, "user:1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)
}

func TestRedisClearWithPrefixKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestRedis(t, WithPrefix("app"))
	defer b.Close()

	assert.NoError(t, b.Set(ctx, "user:1", []byte("v"), time.Minute))
	mr.Set("other:key", "untouched")

	assert.NoError(t, b.Clear(ctx))
	assert.False(t, mr.Exists("app:user:1"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisClearWithoutPrefixFlushes(t *testing.T) {
	ctx := context.Background()
	mr, b := newTestRedis(t)
	defer b.Close()

	assert.NoError(t, b.Set(ctx, "a", []byte("1"), time.Minute))
	assert.NoError(t, b.Set(ctx, "b", []byte("2"), time.Minute))
	assert.NoError(t, b.Clear(ctx))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestRedisScanStripsPrefix(t *testing.T) {
	ctx := context.Background()
	_, b := newTestRedis(t, WithPrefix("app"))
	defer b.Close()

	for _, key := range []string{"user:1", "user:2", "item:1"} {
		assert.NoError(t, b.Set(ctx, key, []byte("v"), time.Minute))
	}
	got := map[string]bool{}
	cursor := uint64(0)
	for {
		next, keys, err := b.Scan(ctx, cursor, "user:*", 10)
		assert.NoError(t, err)
		for _, k := range keys {
			got[k] = true
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	assert.Equal(t, map[string]bool{"user:1": true, "user:2": true}, got)
}

func TestRedisUnreachableFailsNotPanics(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedis(client, WithOpTimeout(100*time.Millisecond))
	defer b.Close()

	mr.Close()
	client.Close()

	found, _, err := b.Get(ctx, "key")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Error(t, b.Set(ctx, "key", []byte("v"), time.Minute))
}

func TestRedisBreakerOpensAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedis(client, WithOpTimeout(50*time.Millisecond))
	defer b.Close()

	mr.Close()
	client.Close()

	for i := 0; i < 6; i++ {
		_, _, _ = b.Get(ctx, "key")
	}
	// Breaker now fails fast without touching the network.
	start := time.Now()
	_, _, err := b.Get(ctx, "key")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestNewRedisURLValidation(t *testing.T) {
	_, err := NewRedisURL("not-a-url://")
	assert.Error(t, err)

	b, err := NewRedisURL("redis://localhost:6379/0")
	assert.NoError(t, err)
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
