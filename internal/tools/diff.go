package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// buildDiffMetadata computes a unified diff and line counts between before
// and after, used by fs__file__write and fs__file__edit to both enrich
// their result metadata and drive session.Manager.AddSummaryDelta
// bookkeeping. Grounded on the teacher's internal/tool/diff.go.
func buildDiffMetadata(path, before, after, baseDir string) (diffText string, additions, deletions int) {
	if before == after {
		return "", 0, 0
	}

	relPath := relativePath(path, baseDir)

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countDiffLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countDiffLines(d.Text)
		}
	}

	patches := dmp.PatchMake(before, diffs)
	text := dmp.PatchToText(patches)
	if text == "" {
		return "", additions, deletions
	}

	var b2 strings.Builder
	if relPath != "" {
		fmt.Fprintf(&b2, "--- %s\n", relPath)
		fmt.Fprintf(&b2, "+++ %s\n", relPath)
	}
	b2.WriteString(text)
	return b2.String(), additions, deletions
}

func relativePath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(baseDir, path); err == nil {
		return rel
	}
	return path
}

func countDiffLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}
