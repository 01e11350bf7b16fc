package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDiffMetadataNoChange(t *testing.T) {
	diff, additions, deletions := buildDiffMetadata("/work/a.txt", "same\n", "same\n", "/work")
	assert.Empty(t, diff)
	assert.Zero(t, additions)
	assert.Zero(t, deletions)
}

func TestBuildDiffMetadataCountsAddedAndRemovedLines(t *testing.T) {
	diff, additions, deletions := buildDiffMetadata("/work/a.txt", "one\ntwo\n", "one\nthree\nfour\n", "/work")
	assert.NotEmpty(t, diff)
	assert.Contains(t, diff, "--- a.txt")
	assert.Contains(t, diff, "+++ a.txt")
	assert.Equal(t, 2, additions)
	assert.Equal(t, 1, deletions)
}

func TestRelativePathHandlesEmptyAndAbsolute(t *testing.T) {
	assert.Equal(t, "", relativePath("", "/work"))
	assert.Equal(t, "/abs/a.txt", relativePath("/abs/a.txt", ""))
	assert.Equal(t, "a.txt", relativePath("/work/a.txt", "/work"))
}

func TestCountDiffLines(t *testing.T) {
	assert.Equal(t, 0, countDiffLines(""))
	assert.Equal(t, 1, countDiffLines("one line, no trailing newline"))
	assert.Equal(t, 2, countDiffLines("one\ntwo\n"))
}
