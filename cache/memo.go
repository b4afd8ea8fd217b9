package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MemoOptions configures a memoized function.
type MemoOptions struct {
	// Name is the logical operation name used in the cache key. Required.
	Name string
	// Prefix namespaces the key (e.g. "user" yields "user:get_user:42").
	Prefix string
	// TTL for cached results; 0 uses the backend default, NoExpiry never
	// expires.
	TTL time.Duration
}

// Memoize wraps a one-argument function with caching. The cache key is
// derived from Prefix, Name and the argument (see BuildKey). On a hit the
// cached value is returned without invoking fn; on a miss fn runs, its
// result is stored, and the original result is returned. If fn fails, the
// failure propagates and nothing is cached.
//
// Any cache failure degrades to recomputation: reads fail open as a miss,
// write failures are logged and swallowed. A key that cannot be built (a
// non-serializable argument) is surfaced as the wrapped call's error, since
// no caching contract can be honored for it.
//
// Concurrent misses on the same key are collapsed in-process: only one
// caller invokes fn, the rest share its result. Duplicate recomputation is
// still possible across processes; no store-native lock is taken.
func Memoize[A, R any](p *Provider, opts MemoOptions, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		key, err := BuildKey(opts.Prefix, opts.Name, []any{arg}, nil)
		if err != nil {
			return zero, err
		}
		return memoCall(ctx, p, key, opts.TTL, func(ctx context.Context) (R, error) {
			return fn(ctx, arg)
		})
	}
}

// Memoize2 is Memoize for two-argument functions.
func Memoize2[A, B, R any](p *Provider, opts MemoOptions, fn func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	return func(ctx context.Context, a A, b B) (R, error) {
		var zero R
		key, err := BuildKey(opts.Prefix, opts.Name, []any{a, b}, nil)
		if err != nil {
			return zero, err
		}
		return memoCall(ctx, p, key, opts.TTL, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b)
		})
	}
}

// memoCall implements the hit/miss/store cycle shared by the Memoize
// wrappers.
func memoCall[R any](ctx context.Context, p *Provider, key string, ttl time.Duration, invoke func(context.Context) (R, error)) (R, error) {
	var zero R
	backend, err := p.Backend(ctx)
	if err != nil {
		// Cache outage degrades to "always recompute", never to a failure
		// caused by the cache itself.
		p.log.Warn("cache unavailable, recomputing", zap.String("key", key), zap.Error(err))
		return invoke(ctx)
	}

	found, data, err := backend.Get(ctx, key)
	if err != nil {
		p.log.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
	} else if found {
		var out R
		if err := decode(data, &out); err == nil {
			p.log.Debug("cache hit", zap.String("key", key))
			return out, nil
		}
		// Corrupt entry: purge and recompute.
		p.log.Warn("purging undecodable cache entry", zap.String("key", key))
		if err := backend.Delete(ctx, key); err != nil {
			p.log.Warn("cache purge failed", zap.String("key", key), zap.Error(err))
		}
	}
	p.log.Debug("cache miss", zap.String("key", key))

	res, err, _ := p.flight.Do(key, func() (any, error) {
		result, err := invoke(ctx)
		if err != nil {
			return nil, err
		}
		data, err := encode(result)
		if err != nil {
			p.log.Warn("cache encode failed, result not cached", zap.String("key", key), zap.Error(err))
			return result, nil
		}
		if err := backend.Set(ctx, key, data, ttl); err != nil {
			p.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return result, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(R), nil
}

// Invalidate wraps a one-argument function with pattern invalidation: fn
// runs first, and only if it succeeds are the keys matching pattern
// removed. A deletion failure is logged but never overturns fn's success;
// fn's result is returned unchanged.
func Invalidate[A, R any](p *Provider, pattern string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return InvalidateFunc(p, func(A) string { return pattern }, fn)
}

// InvalidateFunc is Invalidate with the pattern derived from the call's
// argument, e.g. func(id int) string { return fmt.Sprintf("user:%d:*", id) }.
func InvalidateFunc[A, R any](p *Provider, pattern func(A) string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		result, err := fn(ctx, arg)
		if err != nil {
			return result, err
		}
		pat := pattern(arg)
		backend, berr := p.Backend(ctx)
		if berr != nil {
			p.log.Warn("cache unavailable, invalidation skipped", zap.String("pattern", pat), zap.Error(berr))
			return result, nil
		}
		deleted, derr := backend.DeletePattern(ctx, pat)
		if derr != nil {
			p.log.Warn("cache invalidation failed", zap.String("pattern", pat), zap.Error(derr))
			return result, nil
		}
		p.log.Debug("cache invalidated", zap.String("pattern", pat), zap.Int("deleted", deleted))
		return result, nil
	}
}
