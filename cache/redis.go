package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// redisBackend stores entries in Redis using the store's native TTL, so no
// client-side expiry bookkeeping is needed. Pattern deletion uses cursor
// SCAN with bounded batches and pipelined DELs, never a single blocking
// full-keyspace call. A circuit breaker fails operations fast while the
// store is unreachable instead of paying the timeout on every call.
type redisBackend struct {
	client   *redis.Client
	breaker  *gobreaker.CircuitBreaker[any]
	cfg      config
	owns     bool
	once     sync.Once
	closeErr error
}

var _ Backend = (*redisBackend)(nil)

func newBreaker(name string, log *zap.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("redis circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// NewRedis returns a Backend over an existing client. The caller owns the
// client lifecycle; Close does not close it.
func NewRedis(client *redis.Client, opts ...Option) Backend {
	cfg := applyOptions(opts)
	return &redisBackend{
		client:  client,
		breaker: newBreaker("cache-redis", cfg.log),
		cfg:     cfg,
	}
}

// NewRedisURL connects to the store at a redis:// URL. The connection pool
// is established lazily on first use and held for the backend's lifetime;
// Close releases it. An unparseable URL is a configuration error.
func NewRedisURL(url string, opts ...Option) (Backend, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "cache: invalid redis url")
	}
	cfg := applyOptions(opts)
	return &redisBackend{
		client:  redis.NewClient(ropts),
		breaker: newBreaker("cache-redis", cfg.log),
		cfg:     cfg,
		owns:    true,
	}, nil
}

func (b *redisBackend) prefixKey(key string) string {
	if b.cfg.prefix == "" {
		return key
	}
	return b.cfg.prefix + keySeparator + key
}

func (b *redisBackend) stripPrefix(key string) string {
	if b.cfg.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, b.cfg.prefix+keySeparator)
}

func (b *redisBackend) Get(ctx context.Context, key string) (bool, []byte, error) {
	res, err := b.breaker.Execute(func() (any, error) {
		qctx, cancel := b.cfg.opCtx(ctx)
		defer cancel()
		data, err := b.client.Get(qctx, b.prefixKey(key)).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return false, nil, errors.Wrap(err, "cache: redis get")
	}
	if res == nil {
		return false, nil, nil
	}
	return true, res.([]byte), nil
}

func (b *redisBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	expiry := ttl
	if ttl == 0 {
		expiry = b.cfg.defaultTTL
	} else if ttl < 0 {
		expiry = 0 // redis: no expiry
	}
	_, err := b.breaker.Execute(func() (any, error) {
		qctx, cancel := b.cfg.opCtx(ctx)
		defer cancel()
		return nil, b.client.Set(qctx, b.prefixKey(key), val, expiry).Err()
	})
	if err != nil {
		return errors.Wrap(err, "cache: redis set")
	}
	return nil
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		qctx, cancel := b.cfg.opCtx(ctx)
		defer cancel()
		return nil, b.client.Del(qctx, b.prefixKey(key)).Err()
	})
	if err != nil {
		return errors.Wrap(err, "cache: redis delete")
	}
	return nil
}

// scanPage fetches one bounded SCAN batch of prefixed keys.
func (b *redisBackend) scanPage(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	res, err := b.breaker.Execute(func() (any, error) {
		qctx, cancel := b.cfg.opCtx(ctx)
		defer cancel()
		keys, next, err := b.client.Scan(qctx, cursor, match, count).Result()
		if err != nil {
			return nil, err
		}
		return []any{keys, next}, nil
	})
	if err != nil {
		return 0, nil, errors.Wrap(err, "cache: redis scan")
	}
	pair := res.([]any)
	return pair[1].(uint64), pair[0].([]string), nil
}

func (b *redisBackend) deleteBatch(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := b.breaker.Execute(func() (any, error) {
		qctx, cancel := b.cfg.opCtx(ctx)
		defer cancel()
		return b.client.Del(qctx, keys...).Result()
	})
	if err != nil {
		return 0, errors.Wrap(err, "cache: redis delete batch")
	}
	return int(res.(int64)), nil
}

func (b *redisBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := ValidatePattern(pattern); err != nil {
		return 0, err
	}
	match := b.prefixKey(pattern)
	deleted := 0
	cursor := uint64(0)
	for {
		next, keys, err := b.scanPage(ctx, cursor, match, b.cfg.scanCount)
		if err != nil {
			return deleted, err
		}
		n, err := b.deleteBatch(ctx, keys)
		deleted += n
		if err != nil {
			return deleted, err
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func (b *redisBackend) Scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	if err := ValidatePattern(match); err != nil {
		return 0, nil, err
	}
	if count <= 0 {
		count = b.cfg.scanCount
	}
	next, keys, err := b.scanPage(ctx, cursor, b.prefixKey(match), count)
	if err != nil {
		return 0, nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.stripPrefix(k))
	}
	return next, out, nil
}

// Clear removes every entry owned by this backend instance: the prefix
// namespace when one is configured, otherwise the whole database.
func (b *redisBackend) Clear(ctx context.Context) error {
	if b.cfg.prefix != "" {
		_, err := b.DeletePattern(ctx, "*")
		return err
	}
	_, err := b.breaker.Execute(func() (any, error) {
		qctx, cancel := b.cfg.opCtx(ctx)
		defer cancel()
		return nil, b.client.FlushDB(qctx).Err()
	})
	if err != nil {
		return errors.Wrap(err, "cache: redis flush")
	}
	return nil
}

func (b *redisBackend) Close() error {
	b.once.Do(func() {
		if b.owns {
			b.closeErr = b.client.Close()
		}
	})
	return b.closeErr
}
