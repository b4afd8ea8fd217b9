package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// BackendType discriminates the concrete storage medium.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
)

// ParseBackendType validates a backend discriminator string.
func ParseBackendType(s string) (BackendType, error) {
	switch t := BackendType(strings.ToLower(strings.TrimSpace(s))); t {
	case BackendMemory, BackendFile, BackendRedis:
		return t, nil
	default:
		return "", errors.Mark(errors.Newf("backend type %q", s), ErrUnknownBackend)
	}
}

// Settings selects and configures the process-wide backend. It is the
// contract between the external settings collaborator (the config package)
// and the Provider.
type Settings struct {
	// Backend is the discriminator: memory, file or redis.
	Backend BackendType
	// DefaultTTL applies when Set is called with ttl == 0.
	DefaultTTL time.Duration
	// OpTimeout bounds each I/O-backed backend operation.
	OpTimeout time.Duration
	// ExpiryCheck is the memory backend's janitor interval.
	ExpiryCheck time.Duration
	// ScanCount is the batch size for Scan and DeletePattern.
	ScanCount int64
	// FileRoot is the file backend's root directory.
	FileRoot string
	// RedisURL is the redis backend's connection URL (redis://...).
	RedisURL string
	// RedisPrefix namespaces keys on a shared Redis instance.
	RedisPrefix string
}

func (s Settings) options(log *zap.Logger) []Option {
	opts := []Option{WithLogger(log)}
	if s.DefaultTTL != 0 {
		opts = append(opts, WithDefaultTTL(s.DefaultTTL))
	}
	if s.OpTimeout > 0 {
		opts = append(opts, WithOpTimeout(s.OpTimeout))
	}
	if s.ExpiryCheck > 0 {
		opts = append(opts, WithExpiryCheck(s.ExpiryCheck))
	}
	if s.ScanCount > 0 {
		opts = append(opts, WithScanCount(s.ScanCount))
	}
	if s.RedisPrefix != "" {
		opts = append(opts, WithPrefix(s.RedisPrefix))
	}
	return opts
}

// Provider owns the process-wide backend singleton. The backend is
// constructed lazily on the first Backend call, reused by every subsequent
// caller, and released by Close. Callers hold a non-owning reference; only
// the Provider constructs and destroys the instance.
type Provider struct {
	settings Settings
	log      *zap.Logger

	once    sync.Once
	backend Backend
	initErr error

	mu     sync.Mutex
	closed bool

	flight singleflight.Group
}

// NewProvider validates the settings and returns a Provider. An unknown
// backend discriminator or missing backend-specific configuration is
// rejected here, at startup, not deferred to first use.
func NewProvider(settings Settings, log *zap.Logger) (*Provider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	bt, err := ParseBackendType(string(settings.Backend))
	if err != nil {
		return nil, err
	}
	settings.Backend = bt
	switch bt {
	case BackendFile:
		if settings.FileRoot == "" {
			return nil, errors.New("cache: file backend requires a root path")
		}
	case BackendRedis:
		if settings.RedisURL == "" {
			return nil, errors.New("cache: redis backend requires a connection url")
		}
	}
	return &Provider{settings: settings, log: log}, nil
}

// Backend returns the process-wide backend instance, constructing it on the
// first call. It is safe for concurrent use; all callers observe the same
// instance. After Close it returns ErrClosed.
func (p *Provider) Backend(ctx context.Context) (Backend, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	p.once.Do(func() {
		p.backend, p.initErr = p.build()
		if p.initErr == nil {
			p.log.Info("cache backend ready", zap.String("backend", string(p.settings.Backend)))
		}
	})
	return p.backend, p.initErr
}

// build constructs the singleton. The backend's lifetime is owned by the
// Provider, not by the first caller's context, so background work (the
// memory janitor) is rooted in context.Background and stopped by Close.
func (p *Provider) build() (Backend, error) {
	opts := p.settings.options(p.log)
	switch p.settings.Backend {
	case BackendMemory:
		return NewMemory(context.Background(), opts...), nil
	case BackendFile:
		return NewFile(p.settings.FileRoot, opts...)
	case BackendRedis:
		return NewRedisURL(p.settings.RedisURL, opts...)
	default:
		// Unreachable: NewProvider validated the discriminator.
		return nil, errors.Mark(errors.Newf("backend type %q", p.settings.Backend), ErrUnknownBackend)
	}
}

// Close releases the backend. Idempotent; subsequent Backend calls return
// ErrClosed.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	// Force the once so a concurrent first Backend call cannot construct
	// after Close.
	p.once.Do(func() {
		p.initErr = ErrClosed
	})
	if p.backend != nil {
		return p.backend.Close()
	}
	return nil
}
