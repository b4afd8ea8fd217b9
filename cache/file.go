package cache

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const fileSuffix = ".cache"

// fileEntry is the self-describing envelope persisted for each key. The
// expiry lives inside the file so Get needs no side-channel index.
type fileEntry struct {
	Key       string `msgpack:"k"`
	Value     []byte `msgpack:"v"`
	CreatedAt int64  `msgpack:"c"`
	ExpiresAt int64  `msgpack:"e"` // unix nanos, 0 means never expires
}

// fileBackend persists one file per entry under a root directory. Filenames
// are the base64url encoding of the key, so the key set is reconstructible
// from a directory listing without opening files. Writes go to a temp file
// in the same directory and are renamed into place, so a partially written
// entry is never visible under its final name; concurrent writers to the
// same key race with last-rename-wins.
type fileBackend struct {
	root string
	cfg  config
}

var _ Backend = (*fileBackend)(nil)

// NewFile returns a Backend persisting entries under root, creating the
// directory if needed. An unusable root is a configuration error reported
// immediately.
func NewFile(root string, opts ...Option) (Backend, error) {
	if root == "" {
		return nil, errors.New("cache: file backend requires a root path")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cache: file root %q is not usable", root)
	}
	return &fileBackend{
		root: root,
		cfg:  applyOptions(opts),
	}, nil
}

func (b *fileBackend) path(key string) string {
	return filepath.Join(b.root, base64.RawURLEncoding.EncodeToString([]byte(key))+fileSuffix)
}

// keyFromName reverses path's filename encoding.
func keyFromName(name string) (string, bool) {
	enc, ok := strings.CutSuffix(name, fileSuffix)
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (b *fileBackend) Get(ctx context.Context, key string) (bool, []byte, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	path := b.path(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Wrap(err, "cache: file read")
	}
	var entry fileEntry
	if err := decode(data, &entry); err != nil {
		// Corrupt envelope, purge and report a miss.
		b.cfg.log.Warn("purging corrupt cache file", zap.String("key", key), zap.Error(err))
		_ = os.Remove(path)
		return false, nil, nil
	}
	if entry.ExpiresAt != 0 && entry.ExpiresAt < time.Now().UnixNano() {
		_ = os.Remove(path)
		return false, nil, nil
	}
	return true, entry.Value, nil
}

func (b *fileBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	entry := fileEntry{
		Key:       key,
		Value:     val,
		CreatedAt: now.UnixNano(),
	}
	if expires := b.cfg.resolveTTL(ttl, now); !expires.IsZero() {
		entry.ExpiresAt = expires.UnixNano()
	}
	data, err := encode(entry)
	if err != nil {
		return err
	}

	path := b.path(key)
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "cache: file write")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "cache: file rename")
	}
	return nil
}

func (b *fileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "cache: file delete")
	}
	return nil
}

// listKeys reconstructs the stored key set from the directory listing.
func (b *fileBackend) listKeys() ([]string, error) {
	dirents, err := os.ReadDir(b.root)
	if err != nil {
		return nil, errors.Wrap(err, "cache: file list")
	}
	keys := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		if key, ok := keyFromName(d.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *fileBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := ValidatePattern(pattern); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	keys, err := b.listKeys()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range keys {
		if !matchPattern(pattern, key) {
			continue
		}
		if err := os.Remove(b.path(key)); err == nil {
			deleted++
		} else if !os.IsNotExist(err) {
			return deleted, errors.Wrap(err, "cache: file delete")
		}
	}
	return deleted, nil
}

func (b *fileBackend) Scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	if err := ValidatePattern(match); err != nil {
		return 0, nil, err
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if count <= 0 {
		count = b.cfg.scanCount
	}
	keys, err := b.listKeys()
	if err != nil {
		return 0, nil, err
	}
	matched := keys[:0]
	for _, key := range keys {
		if matchPattern(match, key) {
			matched = append(matched, key)
		}
	}
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

func (b *fileBackend) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dirents, err := os.ReadDir(b.root)
	if err != nil {
		return errors.Wrap(err, "cache: file list")
	}
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(b.root, d.Name())); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "cache: file clear")
		}
	}
	return nil
}

// Close is a no-op; the backend holds no file handles between operations.
func (b *fileBackend) Close() error {
	return nil
}
