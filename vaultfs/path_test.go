package vaultfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath_Root(t *testing.T) {
	for _, p := range []string{"", "/"} {
		parts, err := SplitPath(p)
		assert.NoError(t, err)
		assert.Empty(t, parts)
	}
}

func TestSplitPath_Simple(t *testing.T) {
	parts, err := SplitPath("/hello.txt")
	assert.NoError(t, err)
	assert.Equal(t, []string{"hello.txt"}, parts)
}

func TestSplitPath_Nested(t *testing.T) {
	parts, err := SplitPath("/a/b/c")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, parts)
}

func TestSplitPath_DotAndDotDotAreOrdinary(t *testing.T) {
	parts, err := SplitPath("/./../weird")
	assert.NoError(t, err)
	assert.Equal(t, []string{".", "..", "weird"}, parts)
}

func TestSplitPath_RejectsMissingLeadingSlash(t *testing.T) {
	_, err := SplitPath("a/b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSplitPath_RejectsDoubleSlash(t *testing.T) {
	_, err := SplitPath("/a//b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSplitPath_RejectsTrailingSlash(t *testing.T) {
	_, err := SplitPath("/a/")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
