// Package cache provides a pluggable caching subsystem: one contract over
// heterogeneous storage backends with memoization wrappers, explicit TTL
// expiry and glob-pattern invalidation.
//
// # Backend Interface
//
// The [Backend] interface defines seven operations: [Backend.Get],
// [Backend.Set], [Backend.Delete], [Backend.DeletePattern], [Backend.Scan],
// [Backend.Clear] and [Backend.Close]. All implementations satisfy this
// interface, so the storage medium can be swapped through configuration
// without changing application code.
//
// Backends deal in opaque []byte payloads. Typed access goes through the
// generic helpers [Get], [Set] and [GetOrCompute], which encode and decode
// values with msgpack regardless of which backend stores them.
//
// # Implementations
//
// Three implementations are provided, each with different tradeoffs:
//
//   - [NewMemory] — Process-heap map split across lock shards so operations
//     on different keys do not contend. Fastest option; entries are lost on
//     process restart and never shared across processes. Expired entries
//     are dropped lazily on Get and by a background janitor goroutine.
//     DeletePattern and Scan walk all live keys, O(n) with no I/O cost.
//
//   - [NewFile] — One file per entry under a configured root directory.
//     The filename is the base64url encoding of the key (reversible, so
//     pattern matching works from a directory listing) and the file content
//     is a msgpack envelope holding the value and its expiry, so Get needs
//     no side-channel index. Writes are atomic: a temp file in the same
//     directory is renamed into place, so a partially written entry is
//     never visible. Survives process restarts without external
//     infrastructure.
//
//   - [NewRedis] / [NewRedisURL] — Backed by Redis using
//     [github.com/redis/go-redis/v9] with the store's native TTL; no
//     client-side expiry bookkeeping. DeletePattern enumerates matches with
//     cursor-based SCAN in bounded batches and deletes in bounded pipelined
//     batches, so a large keyspace never stalls the store. A circuit
//     breaker ([github.com/sony/gobreaker/v2]) fails operations fast while
//     the store is unreachable. An optional key prefix namespaces multiple
//     caches on a shared instance.
//
// # TTL Semantics
//
// [Backend.Set] interprets the ttl argument in three ranges: a positive
// duration expires the entry after that long; zero applies the backend's
// configured default TTL ([WithDefaultTTL]); [NoExpiry] (any negative
// value) stores the entry without expiry.
//
// # Provider
//
// [Provider] owns the single process-wide backend instance. Construction is
// validated eagerly (an unknown backend discriminator or missing settings
// fail at startup) but the backend itself is built lazily on the first
// [Provider.Backend] call and reused by every subsequent caller.
// [Provider.Close] releases it once at shutdown. Callers receive the
// Provider by injection; there is no ambient global state.
//
//	p, err := cache.NewProvider(cache.Settings{
//	    Backend:    cache.BackendRedis,
//	    DefaultTTL: 5 * time.Minute,
//	    RedisURL:   "redis://localhost:6379/0",
//	}, log)
//
// # Memoization
//
// [Memoize] wraps a function with caching, deriving the key from a prefix,
// the operation name and the call's arguments via [BuildKey]:
//
//	getUser := cache.Memoize(p, cache.MemoOptions{
//	    Name:   "get_user",
//	    Prefix: "user",
//	    TTL:    time.Minute,
//	}, func(ctx context.Context, id int) (User, error) {
//	    return repo.FindUser(ctx, id)
//	})
//
// The first call invokes the function and caches its result under
// "user:get_user:42"; calls with identical arguments inside the TTL return
// the cached value without invoking it. If the function fails, nothing is
// cached and the failure propagates unchanged.
//
// [Invalidate] and [InvalidateFunc] wrap mutating functions: the function
// runs first, and only on success are the keys matching the pattern
// deleted. A failed deletion is logged, never surfaced, because the primary
// operation already succeeded.
//
// Concurrent misses on one key are collapsed with
// [golang.org/x/sync/singleflight], so only one in-process caller
// recomputes under load. Processes sharing a Redis backend may still
// recompute in parallel; no store-native lock is taken.
//
// # Failure Policy
//
// Medium failures never abort the caller's primary computation. Inside the
// memoization layer, read failures and undecodable entries degrade to a
// miss (fail-open), write failures are logged and swallowed, and a cache
// outage degrades the wrapped function to "always recompute". Direct
// [Backend] users receive failures as ordinary error returns, never panics.
//
// # Invalidation Patterns
//
// DeletePattern accepts glob patterns where `*` matches any run of
// characters, anchored against the full key; a pattern without wildcards
// matches only the exact key. "user:*" removes every key in the user
// namespace across all three backends.
package cache
