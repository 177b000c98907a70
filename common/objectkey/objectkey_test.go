package objectkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "abc.mov", Video("abc"))
	assert.Equal(t, "abcthumbnail.mov", Thumbnail("abc"))
	assert.Equal(t, "abcdef", Combined("abc", "def"))
	assert.Equal(t, "abcdef.mov", Duette("abc", "def"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("abc", "def"))
	assert.ErrorIs(t, Validate("abc", " "), ErrEmptyID)
	assert.ErrorIs(t, Validate(""), ErrEmptyID)
}
