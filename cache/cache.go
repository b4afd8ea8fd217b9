package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Backend is the unified contract implemented by every storage medium.
// Values are opaque serialized payloads; use the generic helpers Get, Set
// and GetOrCompute for typed access.
//
// Medium failures (disk I/O, network) are returned as errors, never panics.
// A miss is signalled by found=false with a nil error, including for
// expired or absent keys.
type Backend interface {
	// Get retrieves the payload stored under key. Expired and absent keys
	// report found=false and no error.
	Get(ctx context.Context, key string) (found bool, val []byte, err error)

	// Set stores a payload under key. ttl == 0 uses the backend's
	// configured default TTL; ttl < 0 (NoExpiry) stores the entry without
	// expiry; ttl > 0 expires the entry after that duration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching the glob pattern (`*` is a
	// multi-character wildcard; a pattern with no wildcard matches only the
	// exact key) and returns the number of keys removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Scan enumerates keys matching the glob pattern in bounded batches.
	// Pass cursor 0 to start; iteration is complete when the returned
	// cursor is 0.
	Scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error)

	// Clear removes every entry owned by this backend instance.
	Clear(ctx context.Context) error

	// Close releases held resources. Idempotent.
	Close() error
}

// NoExpiry is the TTL sentinel for entries that never expire.
const NoExpiry time.Duration = -1

// DefaultTTL is the fallback TTL used when Set is called with ttl == 0 and
// no default was configured.
const DefaultTTL = 5 * time.Minute

// DefaultOpTimeout bounds every I/O-backed backend operation so a slow or
// unresponsive medium cannot hang the caller.
const DefaultOpTimeout = 5 * time.Second

// DefaultScanCount is the per-batch size used by Scan and DeletePattern.
const DefaultScanCount int64 = 100

// config holds the resolved configuration shared by backend implementations.
type config struct {
	defaultTTL  time.Duration
	opTimeout   time.Duration
	expiryCheck time.Duration
	scanCount   int64
	prefix      string
	log         *zap.Logger
}

// Option configures a backend implementation.
type Option func(*config)

func defaultBackendConfig() config {
	return config{
		defaultTTL:  DefaultTTL,
		opTimeout:   DefaultOpTimeout,
		expiryCheck: time.Minute,
		scanCount:   DefaultScanCount,
		log:         zap.NewNop(),
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultBackendConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDefaultTTL sets the TTL applied when Set is called with ttl == 0.
// Defaults to DefaultTTL (5 minutes).
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithOpTimeout sets the per-operation timeout for I/O-backed backends
// (file, redis). Defaults to DefaultOpTimeout (5 seconds).
func WithOpTimeout(d time.Duration) Option {
	return func(c *config) { c.opTimeout = d }
}

// WithExpiryCheck sets the interval for background expired-entry cleanup.
// Applies to the memory backend. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithScanCount sets the batch size used by Scan and DeletePattern.
// Defaults to DefaultScanCount (100).
func WithScanCount(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.scanCount = n
		}
	}
}

// WithPrefix sets a key prefix for namespacing. Applies to the redis
// backend. Defaults to empty (no prefix).
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithLogger sets the logger used for backend diagnostics (medium failures,
// purged corrupt entries). Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// resolveTTL maps the TTL sentinel values to an absolute expiry time.
// The zero time means the entry never expires.
func (c config) resolveTTL(ttl time.Duration, now time.Time) time.Time {
	if ttl < 0 {
		return time.Time{}
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	return now.Add(ttl)
}

// opCtx bounds an operation with the configured per-operation timeout.
func (c config) opCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.opTimeout)
}

// Get retrieves a typed value from a backend, decoding the stored msgpack
// payload. A decode failure is reported as an ErrSerialization-marked error;
// callers that want fail-open semantics should treat it as a miss.
func Get[T any](ctx context.Context, b Backend, key string) (bool, T, error) {
	var zero T
	found, data, err := b.Get(ctx, key)
	if !found || err != nil {
		return false, zero, err
	}
	var out T
	if err := decode(data, &out); err != nil {
		return false, zero, err
	}
	return true, out, nil
}

// Set encodes a typed value with msgpack and stores it in a backend.
func Set[T any](ctx context.Context, b Backend, key string, val T, ttl time.Duration) error {
	data, err := encode(val)
	if err != nil {
		return err
	}
	return b.Set(ctx, key, data, ttl)
}

// Compute produces a value of type T on a cache miss. The bool return
// signals whether a value was produced; return false to avoid caching a
// zero value (e.g. a record that does not exist).
type Compute[T any] func(ctx context.Context) (T, bool, error)

// GetOrCompute is a cache-aside helper over a Backend. On a hit the cached
// value is returned without invoking compute. On a miss, compute runs; if
// it reports found=true the value is stored with the given TTL and
// returned. Cache read and write failures degrade to recomputation and are
// never surfaced as the caller's error — only compute's own error
// propagates.
func GetOrCompute[T any](ctx context.Context, b Backend, key string, ttl time.Duration, log *zap.Logger, compute Compute[T]) (bool, T, error) {
	if log == nil {
		log = zap.NewNop()
	}
	found, val, err := Get[T](ctx, b, key)
	if err != nil {
		log.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
	} else if found {
		return true, val, nil
	}

	result, ok, err := compute(ctx)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if !ok {
		var zero T
		return false, zero, nil
	}

	if err := Set(ctx, b, key, result, ttl); err != nil {
		log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return true, result, nil
}
