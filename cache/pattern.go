package cache

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
)

// Invalidation patterns use glob semantics: `*` matches any run of
// characters and a pattern without wildcards matches only the exact key.
// Patterns are matched against the full key, case-sensitively.
//
// Key segments escape `/` (see escapeSegment), so doublestar's
// path-separator special-casing never splits a key and `*` spans the whole
// key, matching Redis MATCH behavior for the supported pattern language.

// ValidatePattern reports whether a pattern is well-formed.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return errors.Mark(errors.New("empty pattern"), ErrBadPattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return errors.Mark(errors.Newf("malformed pattern %q", pattern), ErrBadPattern)
	}
	return nil
}

// matchPattern reports whether key matches the glob pattern.
func matchPattern(pattern, key string) bool {
	if !strings.ContainsAny(pattern, `*?[{\`) {
		return pattern == key
	}
	ok, err := doublestar.Match(pattern, key)
	return err == nil && ok
}
