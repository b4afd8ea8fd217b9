package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// memShardCount is the number of lock shards; operations on keys that land
// in different shards never contend.
const memShardCount = 16

type memEntry struct {
	data      []byte
	createdAt time.Time
	expiresAt time.Time // zero means never expires
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(now)
}

type memShard struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

// memoryBackend keeps entries in process heap across a fixed set of lock
// shards. It is the fastest and least durable backend: all entries are lost
// on process restart and nothing is shared across processes. Scan and
// DeletePattern walk every live key, which is O(n) in live entry count but
// involves no I/O.
type memoryBackend struct {
	shards    [memShardCount]*memShard
	cfg       config
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
}

var _ Backend = (*memoryBackend)(nil)

// NewMemory returns a process-local Backend. Expired entries are removed
// lazily on Get and by a background janitor at the WithExpiryCheck interval.
// The janitor stops when the backend is closed or parent is cancelled.
func NewMemory(parent context.Context, opts ...Option) Backend {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	b := &memoryBackend{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range b.shards {
		b.shards[i] = &memShard{entries: make(map[string]*memEntry)}
	}
	b.waitGroup.Add(1)
	go b.run()
	return b
}

func (b *memoryBackend) shard(key string) *memShard {
	return b.shards[xxhash.Sum64String(key)%memShardCount]
}

func (b *memoryBackend) Get(_ context.Context, key string) (bool, []byte, error) {
	s := b.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false, nil, nil
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return false, nil, nil
	}
	return true, e.data, nil
}

func (b *memoryBackend) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	now := time.Now()
	e := &memEntry{
		data:      val,
		createdAt: now,
		expiresAt: b.cfg.resolveTTL(ttl, now),
	}
	s := b.shard(key)
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	s := b.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (b *memoryBackend) DeletePattern(_ context.Context, pattern string) (int, error) {
	if err := ValidatePattern(pattern); err != nil {
		return 0, err
	}
	now := time.Now()
	deleted := 0
	for _, s := range b.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if e.expired(now) {
				delete(s.entries, key)
				continue
			}
			if matchPattern(pattern, key) {
				delete(s.entries, key)
				deleted++
			}
		}
		s.mu.Unlock()
	}
	return deleted, nil
}

// Scan pages through the live keys matching pattern, sorted for a stable
// cursor. The cursor is an offset into the sorted match set.
func (b *memoryBackend) Scan(_ context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	if err := ValidatePattern(match); err != nil {
		return 0, nil, err
	}
	if count <= 0 {
		count = b.cfg.scanCount
	}
	now := time.Now()
	var matched []string
	for _, s := range b.shards {
		s.mu.Lock()
		for key, e := range s.entries {
			if !e.expired(now) && matchPattern(match, key) {
				matched = append(matched, key)
			}
		}
		s.mu.Unlock()
	}
	sort.Strings(matched)

	start := int(cursor)
	if start >= len(matched) {
		return 0, nil, nil
	}
	end := start + int(count)
	if end >= len(matched) {
		return 0, matched[start:], nil
	}
	return uint64(end), matched[start:end], nil
}

func (b *memoryBackend) Clear(_ context.Context) error {
	for _, s := range b.shards {
		s.mu.Lock()
		s.entries = make(map[string]*memEntry)
		s.mu.Unlock()
	}
	return nil
}

func (b *memoryBackend) Close() error {
	b.once.Do(func() {
		b.cancel()
		b.waitGroup.Wait()
	})
	return nil
}

func (b *memoryBackend) run() {
	defer b.waitGroup.Done()
	ticker := time.NewTicker(b.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			purged := 0
			for _, s := range b.shards {
				s.mu.Lock()
				for key, e := range s.entries {
					if e.expired(now) {
						delete(s.entries, key)
						purged++
					}
				}
				s.mu.Unlock()
			}
			if purged > 0 {
				b.cfg.log.Debug("purged expired entries", zap.Int("count", purged))
			}
		}
	}
}
