package tools

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

const fileWriteHelp = `Writes content to a file, overwriting it if it already exists.

- filePath may be absolute or relative to the session's workspace root
- Parent directories are created as needed
- Prefer fs__file__edit over rewriting an entire file you only need to
  change part of`

const fileWriteParameters = `{
	"type": "object",
	"properties": {
		"filePath": {"type": "string", "description": "Path to the file to write"},
		"content": {"type": "string", "description": "The content to write"}
	},
	"required": ["filePath", "content"]
}`

// fileWriteDefinition declares fs__file__write. Grounded on the teacher's
// internal/tool/write.go (MkdirAll + WriteFile), enriched with diff-based
// SessionSummary bookkeeping via session.Manager.AddSummaryDelta, which
// the teacher's version doesn't have since it has no durable session
// summary record to feed.
func fileWriteDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:       "fs__file__write",
		Parameters: []byte(fileWriteParameters),
		Help:       fileWriteHelp,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			filePath, _ := inv.Args["filePath"].(string)
			content, _ := inv.Args["content"].(string)
			if filePath == "" {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "filePath is required"}
			}

			path := resolvePath(deps, filePath)
			before, _ := os.ReadFile(path) // missing file reads as empty "before"

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("failed to create directory: %v", err)}
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("failed to write file: %v", err)}
			}

			diffText, additions, deletions := buildDiffMetadata(path, string(before), content, deps.WorkDir)
			if deps.Manager != nil && inv.SessionID != 0 {
				_, _ = deps.Manager.AddSummaryDelta(inv.SessionID, additions, deletions)
			}

			return toolcatalog.Outcome{
				Status: toolcatalog.StatusSuccess,
				Result: map[string]any{
					"output":    fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path),
					"file":      path,
					"bytes":     len(content),
					"diff":      diffText,
					"additions": additions,
					"deletions": deletions,
				},
			}
		},
	}
}
