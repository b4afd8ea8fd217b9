package cache

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestBuildKeyScalarArgs(t *testing.T) {
	key, err := BuildKey("user", "get_user", []any{42}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "user:get_user:42", key)

	key, err = BuildKey("", "get_user", []any{42, "active", true}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "get_user:42,active,true", key)
}

func TestBuildKeyNoArgs(t *testing.T) {
	key, err := BuildKey("stats", "totals", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, "stats:totals", key)
}

func TestBuildKeyKwargOrderIndependent(t *testing.T) {
	a, err := BuildKey("user", "search", nil, map[string]any{"name": "ada", "limit": 10})
	assert.NoError(t, err)
	b, err := BuildKey("user", "search", nil, map[string]any{"limit": 10, "name": "ada"})
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildKeyDifferentValuesDifferentKeys(t *testing.T) {
	seen := map[string]bool{}
	for _, args := range [][]any{
		{1}, {2}, {"x"}, {true}, {1.5}, {[]int{1}}, {map[string]int{"a": 1}},
	} {
		key, err := BuildKey("p", "op", args, nil)
		assert.NoError(t, err)
		assert.False(t, seen[key], "collision for %v", args)
		seen[key] = true
	}
}

func TestBuildKeyCompositeArgsDeterministic(t *testing.T) {
	arg := map[string]any{"b": 2, "a": 1}
	k1, err := BuildKey("p", "op", []any{arg}, nil)
	assert.NoError(t, err)
	k2, err := BuildKey("p", "op", []any{map[string]any{"a": 1, "b": 2}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestBuildKeyEscapesSeparators(t *testing.T) {
	key, err := BuildKey("a:b", "op", []any{"x:y"}, nil)
	assert.NoError(t, err)
	// Exactly two separators: prefix, op, args.
	assert.Equal(t, 2, strings.Count(key, ":"))
}

func TestBuildKeyEscapesGlobChars(t *testing.T) {
	key, err := BuildKey("p", "op", []any{"*"}, nil)
	assert.NoError(t, err)
	assert.NotContains(t, key, "*")
	// A literal-star argument must not glob-match other keys.
	other, err := BuildKey("p", "op", []any{"anything"}, nil)
	assert.NoError(t, err)
	assert.False(t, matchPattern(key, other))
}

func TestBuildKeyLongStringDigested(t *testing.T) {
	long := strings.Repeat("x", 500)
	key, err := BuildKey("p", "op", []any{long}, nil)
	assert.NoError(t, err)
	assert.Less(t, len(key), 64)
}

func TestBuildKeyUnserializableArg(t *testing.T) {
	_, err := BuildKey("p", "op", []any{func() {}}, nil)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyBuild))
}

func TestBuildKeyRequiresOperation(t *testing.T) {
	_, err := BuildKey("p", "", nil, nil)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyBuild))
}
