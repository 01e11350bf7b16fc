package tools

import (
	"fmt"
	"os"
	"strings"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

const fileEditHelp = `Performs exact string replacements in a file.

- filePath may be absolute or relative to the session's workspace root
- oldString must exist in the file (exact match required); the edit FAILS
  if it appears more than once unless replaceAll is set
- oldString and newString must differ`

const fileEditParameters = `{
	"type": "object",
	"properties": {
		"filePath": {"type": "string", "description": "Path to the file to edit"},
		"oldString": {"type": "string", "description": "The exact text to replace"},
		"newString": {"type": "string", "description": "The text to replace it with"},
		"replaceAll": {"type": "boolean", "description": "Replace all occurrences (default false)"}
	},
	"required": ["filePath", "oldString", "newString"]
}`

// fileEditDefinition declares fs__file__edit. Grounded on the teacher's
// internal/tool/edit.go: exact-match replacement, unique-match enforcement
// unless replaceAll, and a line-ending-normalized fallback when the exact
// string isn't found verbatim. Diff metadata and SessionSummary bookkeeping
// are shared with fs__file__write via buildDiffMetadata.
func fileEditDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:       "fs__file__edit",
		Parameters: []byte(fileEditParameters),
		Help:       fileEditHelp,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			filePath, _ := inv.Args["filePath"].(string)
			oldString, _ := inv.Args["oldString"].(string)
			newString, _ := inv.Args["newString"].(string)
			replaceAll, _ := inv.Args["replaceAll"].(bool)

			if filePath == "" {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "filePath is required"}
			}
			if oldString == newString {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "oldString and newString must be different"}
			}

			path := resolvePath(deps, filePath)
			before, err := os.ReadFile(path)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("failed to read file: %v", err)}
			}
			text := string(before)

			after, count, ok := replaceOccurrences(text, oldString, newString, replaceAll)
			if !ok {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "oldString not found in file"}
			}
			if count > 1 && !replaceAll {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("oldString appears %d times in file; use replaceAll or provide more context", count)}
			}

			if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("failed to write file: %v", err)}
			}

			diffText, additions, deletions := buildDiffMetadata(path, text, after, deps.WorkDir)
			if deps.Manager != nil && inv.SessionID != 0 {
				_, _ = deps.Manager.AddSummaryDelta(inv.SessionID, additions, deletions)
			}

			return toolcatalog.Outcome{
				Status: toolcatalog.StatusSuccess,
				Result: map[string]any{
					"output":       fmt.Sprintf("Replaced %d occurrence(s)", count),
					"file":         path,
					"replacements": count,
					"diff":         diffText,
					"additions":    additions,
					"deletions":    deletions,
				},
			}
		},
	}
}

// replaceOccurrences tries an exact-match replace first, falling back to a
// line-ending-normalized match the way the teacher's fuzzyReplace does,
// since editors and the model alike sometimes disagree on \r\n vs \n.
func replaceOccurrences(text, oldString, newString string, replaceAll bool) (result string, count int, ok bool) {
	if strings.Count(text, oldString) > 0 {
		count = strings.Count(text, oldString)
		if replaceAll {
			return strings.ReplaceAll(text, oldString, newString), count, true
		}
		return strings.Replace(text, oldString, newString, 1), count, true
	}

	normalizedText := normalizeLineEndings(text)
	normalizedOld := normalizeLineEndings(oldString)
	if strings.Count(normalizedText, normalizedOld) > 0 {
		count = strings.Count(normalizedText, normalizedOld)
		if replaceAll {
			return strings.ReplaceAll(normalizedText, normalizedOld, newString), count, true
		}
		return strings.Replace(normalizedText, normalizedOld, newString, 1), count, true
	}

	return "", 0, false
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
