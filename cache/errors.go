package cache

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownBackend is returned by NewProvider when the configured
	// backend discriminator is not one of memory, file or redis.
	ErrUnknownBackend = errors.New("cache: unknown backend type")

	// ErrClosed is returned when an operation is attempted on a closed
	// Provider. Checked with errors.Is.
	ErrClosed = errors.New("cache: provider is closed")

	// ErrKeyBuild is returned when a cache key cannot be derived from the
	// supplied arguments, e.g. an argument that cannot be serialized.
	ErrKeyBuild = errors.New("cache: cannot build key")

	// ErrSerialization is returned when a value cannot be encoded or a
	// stored entry cannot be decoded. On decode the caller should treat
	// the entry as a miss.
	ErrSerialization = errors.New("cache: serialization failed")

	// ErrBadPattern is returned when an invalidation pattern is malformed.
	ErrBadPattern = errors.New("cache: invalid pattern")
)

func keyBuildError(err error, format string, args ...any) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), ErrKeyBuild)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrKeyBuild)
}

func serializationError(err error) error {
	return errors.Mark(err, ErrSerialization)
}
