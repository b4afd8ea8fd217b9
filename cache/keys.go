package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Separator between the prefix, operation name and argument segments of a
// cache key.
const keySeparator = ":"

// maxLiteralLen is the longest rendered scalar argument kept verbatim in a
// key; longer values are digested to keep keys (and the file backend's
// filenames) bounded.
const maxLiteralLen = 64

// escapedChars are percent-encoded inside key segments so that a segment
// can never introduce a separator, an argument delimiter or glob syntax.
const escapedChars = "%:,=*?[{\\/"

// escapeSegment deterministically escapes characters that would collide
// with key structure or pattern syntax.
func escapeSegment(s string) string {
	if !strings.ContainsAny(s, escapedChars) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(escapedChars, c) >= 0 {
			b.WriteByte('%')
			b.WriteString(hex.EncodeToString([]byte{c}))
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// digest renders a canonical 128-bit hex digest of a JSON payload.
//
// Truncating SHA-256 to 128 bits is lossy in principle; at 2^32 distinct
// argument tuples the collision probability is about 2^-64, which is
// negligible for any practical key corpus. This matches the entropy of the
// original scheme while using a non-broken primitive.
func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// canonicalArg renders a single argument to a deterministic string.
// Scalars keep a readable literal form (so get_user(42) caches under
// "user:get_user:42"); composites (slices, maps, structs) are canonicalized
// through JSON, whose map keys are emitted in sorted order, and digested.
// Values that cannot be serialized (functions, channels) are a caller error
// surfaced as ErrKeyBuild.
//
// Literal forms are untyped: int 1 and string "1" render identically. Keys
// are namespaced by operation name and an operation has a fixed signature,
// so this never collides within one operation; callers mixing argument
// types under a single operation name must not rely on type identity.
func canonicalArg(v any) (string, error) {
	var lit string
	switch t := v.(type) {
	case nil:
		lit = "nil"
	case bool:
		lit = strconv.FormatBool(t)
	case string:
		lit = escapeSegment(t)
	case int:
		lit = strconv.FormatInt(int64(t), 10)
	case int8:
		lit = strconv.FormatInt(int64(t), 10)
	case int16:
		lit = strconv.FormatInt(int64(t), 10)
	case int32:
		lit = strconv.FormatInt(int64(t), 10)
	case int64:
		lit = strconv.FormatInt(t, 10)
	case uint:
		lit = strconv.FormatUint(uint64(t), 10)
	case uint8:
		lit = strconv.FormatUint(uint64(t), 10)
	case uint16:
		lit = strconv.FormatUint(uint64(t), 10)
	case uint32:
		lit = strconv.FormatUint(uint64(t), 10)
	case uint64:
		lit = strconv.FormatUint(t, 10)
	case float32:
		lit = strconv.FormatFloat(float64(t), 'g', -1, 32)
	case float64:
		lit = strconv.FormatFloat(t, 'g', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", keyBuildError(err, "argument of type %T is not serializable", v)
		}
		return digest(data), nil
	}
	if len(lit) > maxLiteralLen {
		return digest([]byte(lit)), nil
	}
	return lit, nil
}

// BuildKey derives a deterministic cache key from a logical prefix, an
// operation name, positional arguments and keyword-style arguments.
//
// Positional arguments are rendered in order; keyword arguments are sorted
// by name before rendering, so call-order never affects the key. Identical
// operation and argument values always produce the identical key, across
// process restarts.
func BuildKey(prefix, op string, args []any, kwargs map[string]any) (string, error) {
	if op == "" {
		return "", keyBuildError(nil, "operation name is required")
	}

	segments := make([]string, 0, 3)
	if prefix != "" {
		segments = append(segments, escapeSegment(prefix))
	}
	segments = append(segments, escapeSegment(op))

	parts := make([]string, 0, len(args)+len(kwargs))
	for i, arg := range args {
		s, err := canonicalArg(arg)
		if err != nil {
			return "", keyBuildError(err, "positional argument %d", i)
		}
		parts = append(parts, s)
	}
	if len(kwargs) > 0 {
		names := make([]string, 0, len(kwargs))
		for name := range kwargs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s, err := canonicalArg(kwargs[name])
			if err != nil {
				return "", keyBuildError(err, "keyword argument %q", name)
			}
			parts = append(parts, escapeSegment(name)+"="+s)
		}
	}
	if len(parts) > 0 {
		segments = append(segments, strings.Join(parts, ","))
	}

	return strings.Join(segments, keySeparator), nil
}

// BuildPattern joins segments into an invalidation pattern using the key
// separator. String segments are taken verbatim, so they may carry `*`
// wildcards; other values are rendered with the same canonical form as key
// building, letting a pattern embed derived values such as an entity
// identifier: BuildPattern("user", id, "*") yields "user:42:*".
func BuildPattern(segments ...any) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s, ok := seg.(string); ok {
			parts = append(parts, s)
			continue
		}
		if s, err := canonicalArg(seg); err == nil {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, keySeparator)
}
