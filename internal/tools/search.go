package tools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

const maxSearchResults = 100

const globSearchHelp = `Fast file pattern matching.

- pattern supports glob syntax like "**/*.go" or "src/**/*.ts"
- path is optional, defaults to the session's workspace root
- Returns matching file paths sorted by modification time, newest first`

const globSearchParameters = `{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "The glob pattern to match files against"},
		"path": {"type": "string", "description": "Directory to search in (default: workspace root)"}
	},
	"required": ["pattern"]
}`

// globSearchDefinition declares fs__glob__search. Grounded on the teacher's
// internal/tool/glob.go, but walks the filesystem with
// github.com/bmatcuk/doublestar/v4 instead of shelling out to an external
// `rg` binary, so a child process doesn't depend on a ripgrep install
// existing in its container image. doublestar is used only in this file;
// the allowlist (internal/approval) matches with regexp and prefixes.
func globSearchDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:       "fs__glob__search",
		Parameters: []byte(globSearchParameters),
		Help:       globSearchHelp,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			pattern, _ := inv.Args["pattern"].(string)
			searchPath, _ := inv.Args["path"].(string)
			if pattern == "" {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "pattern is required"}
			}

			dir := deps.WorkDir
			if searchPath != "" {
				dir = resolvePath(deps, searchPath)
			}

			fsys := os.DirFS(dir)
			matches, err := doublestar.Glob(fsys, pattern)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("invalid pattern: %v", err)}
			}

			type entry struct {
				path    string
				modTime time.Time
			}
			entries := make([]entry, 0, len(matches))
			for _, m := range matches {
				full := filepath.Join(dir, m)
				info, err := os.Stat(full)
				if err != nil || info.IsDir() {
					continue
				}
				entries = append(entries, entry{path: full, modTime: info.ModTime()})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.After(entries[j].modTime) })

			truncated := false
			if len(entries) > maxSearchResults {
				entries = entries[:maxSearchResults]
				truncated = true
			}

			var sb strings.Builder
			for _, e := range entries {
				sb.WriteString(e.path)
				sb.WriteString("\n")
			}
			if truncated {
				sb.WriteString(fmt.Sprintf("\n(Showing %d of more files)", maxSearchResults))
			}
			if len(entries) == 0 {
				sb.WriteString("No files matched the pattern")
			}

			return toolcatalog.Outcome{
				Status: toolcatalog.StatusSuccess,
				Result: map[string]any{
					"output":  strings.TrimRight(sb.String(), "\n"),
					"pattern": pattern,
					"count":   len(entries),
				},
			}
		},
	}
}

const grepSearchHelp = `A content search tool built on ripgrep.

- pattern is a regex (e.g. "log.*Error", "func\\s+\\w+")
- path is optional, defaults to the workspace root
- include is an optional glob filter (e.g. "*.go", "**/*.{ts,tsx}")`

const grepSearchParameters = `{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "description": "The regex pattern to search for"},
		"path": {"type": "string", "description": "Directory to search in"},
		"include": {"type": "string", "description": "File glob to include, e.g. \"*.go\""}
	},
	"required": ["pattern"]
}`

// grepSearchDefinition declares fs__grep__search, grounded directly on the
// teacher's internal/tool/grep.go: it shells out to `rg`, the one external
// dependency in this tool set the teacher itself relies on rather than
// reimplementing regex-over-files in Go.
func grepSearchDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:       "fs__grep__search",
		Parameters: []byte(grepSearchParameters),
		Help:       grepSearchHelp,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			pattern, _ := inv.Args["pattern"].(string)
			searchPath, _ := inv.Args["path"].(string)
			include, _ := inv.Args["include"].(string)
			if pattern == "" {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "pattern is required"}
			}

			dir := deps.WorkDir
			if searchPath != "" {
				dir = resolvePath(deps, searchPath)
			}

			args := []string{"--line-number", "--with-filename", "--color=never"}
			if include != "" {
				args = append(args, "--glob", include)
			}
			args = append(args, pattern, dir)

			cmd := exec.CommandContext(inv.Ctx, "rg", args...)
			output, _ := cmd.Output()

			if len(output) == 0 {
				return toolcatalog.Outcome{
					Status: toolcatalog.StatusSuccess,
					Result: map[string]any{"output": "No matches found", "pattern": pattern, "count": 0},
				}
			}

			lines := strings.Split(strings.TrimSpace(string(output)), "\n")
			truncated := false
			if len(lines) > maxSearchResults {
				lines = lines[:maxSearchResults]
				truncated = true
			}

			var sb strings.Builder
			for _, line := range lines {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
			if truncated {
				sb.WriteString(fmt.Sprintf("\n(Showing %d of more matches)", maxSearchResults))
			}

			return toolcatalog.Outcome{
				Status: toolcatalog.StatusSuccess,
				Result: map[string]any{
					"output":  strings.TrimRight(sb.String(), "\n"),
					"pattern": pattern,
					"count":   len(lines),
				},
			}
		},
	}
}

// defaultIgnorePatterns mirrors the teacher's internal/tool/list.go default
// ignore set for directory listings.
var defaultIgnorePatterns = []string{
	"node_modules", "__pycache__", ".git", "dist", "build", "target",
	"vendor", "bin", "obj", ".idea", ".vscode", ".cache", "tmp", "temp",
	".venv", "venv", "env",
}

const directoryListHelp = `Lists files and directories under a path.

- path is optional, defaults to the workspace root
- ignore is an optional list of glob patterns to exclude
- Runs on the host, not the child, against the session's workspace
  directory.`

const directoryListParameters = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "Directory to list"},
		"ignore": {"type": "array", "items": {"type": "string"}, "description": "Glob patterns to ignore"}
	}
}`

// directoryListDefinition declares fs__directory__list as a
// RequiresHostExecution tool (S2 in spec.md's end-to-end scenarios uses
// exactly this tool to demonstrate the host-executed tool_call round trip).
func directoryListDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:                  "fs__directory__list",
		Parameters:            []byte(directoryListParameters),
		Help:                  directoryListHelp,
		RequiresHostExecution: true,
		Alias: func(argv []string) (string, map[string]any, bool) {
			if len(argv) < 2 || argv[0] != "ls" {
				return "", nil, false
			}
			return "fs__directory__list", map[string]any{"path": argv[1]}, true
		},
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			path, _ := inv.Args["path"].(string)
			var ignore []string
			if raw, ok := inv.Args["ignore"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						ignore = append(ignore, s)
					}
				}
			}

			dir := resolvePath(deps, path)
			entries, err := os.ReadDir(dir)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("failed to list %s: %v", dir, err)}
			}

			ignorePatterns := append(append([]string{}, defaultIgnorePatterns...), ignore...)

			var sb strings.Builder
			count := 0
			for _, e := range entries {
				if shouldIgnore(e.Name(), ignorePatterns) {
					continue
				}
				info, err := e.Info()
				size := int64(0)
				if err == nil {
					size = info.Size()
				}
				kind := "file"
				if e.IsDir() {
					kind = "dir"
				}
				sb.WriteString(fmt.Sprintf("%-5s %10s  %s\n", kind, strconv.FormatInt(size, 10), e.Name()))
				count++
			}

			return toolcatalog.Outcome{
				Status: toolcatalog.StatusSuccess,
				Result: map[string]any{
					"output": strings.TrimRight(sb.String(), "\n"),
					"path":   dir,
					"count":  count,
				},
			}
		},
	}
}

func shouldIgnore(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
		if name == p {
			return true
		}
	}
	return false
}
