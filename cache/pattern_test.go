package cache

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	assert.True(t, matchPattern("user:*", "user:get_user:42"))
	assert.True(t, matchPattern("user:*", "user:"))
	assert.True(t, matchPattern("*", "anything:at:all"))
	assert.True(t, matchPattern("user:*:42", "user:get_user:42"))
	assert.False(t, matchPattern("user:*", "item:7"))
	assert.False(t, matchPattern("User:*", "user:x")) // case-sensitive
}

func TestMatchPatternExactWithoutWildcard(t *testing.T) {
	assert.True(t, matchPattern("user:get_user:42", "user:get_user:42"))
	assert.False(t, matchPattern("user:get_user", "user:get_user:42"))
}

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, ValidatePattern("user:*"))
	err := ValidatePattern("")
	assert.True(t, errors.Is(err, ErrBadPattern))
	err = ValidatePattern("user:[")
	assert.True(t, errors.Is(err, ErrBadPattern))
}
