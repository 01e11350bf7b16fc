package tools

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

const fileReadHelp = `Reads a file from the workspace.

- filePath may be absolute or relative to the session's workspace root
- By default reads up to 2000 lines from the beginning
- offset/limit page through longer files
- Image files are returned as a base64 data URL instead of text`

const fileReadParameters = `{
	"type": "object",
	"properties": {
		"filePath": {"type": "string", "description": "Path to the file to read"},
		"offset": {"type": "integer", "description": "Line number to start reading from"},
		"limit": {"type": "integer", "description": "Number of lines to read (default 2000)"}
	},
	"required": ["filePath"]
}`

const maxReadLineLength = 2000
const defaultReadLimit = 2000

// fileReadDefinition declares fs__file__read. Grounded on the teacher's
// internal/tool/read.go: line-numbered <file> framing, offset/limit
// pagination, .env blocking, and image/binary detection.
func fileReadDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:       "fs__file__read",
		Parameters: []byte(fileReadParameters),
		Help:       fileReadHelp,
		Alias: func(argv []string) (string, map[string]any, bool) {
			if len(argv) < 2 || argv[0] != "read" {
				return "", nil, false
			}
			return "fs__file__read", map[string]any{"filePath": argv[1]}, true
		},
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			filePath, _ := inv.Args["filePath"].(string)
			if filePath == "" {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "filePath is required"}
			}
			offset, _ := inv.Args["offset"].(float64)
			limit, _ := inv.Args["limit"].(float64)
			if limit <= 0 {
				limit = defaultReadLimit
			}

			path := resolvePath(deps, filePath)
			if shouldBlockEnvFile(path) {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("reading %s is blocked; do not retry", path)}
			}

			info, err := os.Stat(path)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("file not found: %s", path)}
			}
			if info.IsDir() {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("path is a directory, not a file: %s", path)}
			}

			if isImageFile(path) {
				return readImageOutcome(path)
			}
			if isBinaryFile(path) {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "file appears to be binary"}
			}
			return readTextOutcome(path, int(offset), int(limit))
		},
	}
}

func readTextOutcome(path string, offset, limit int) toolcatalog.Outcome {
	file, err := os.Open(path)
	if err != nil {
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if offset > 0 && lineNum < offset {
			continue
		}
		if len(lines) >= limit {
			break
		}
		line := scanner.Text()
		if len(line) > maxReadLineLength {
			line = line[:maxReadLineLength] + "..."
		}
		lines = append(lines, fmt.Sprintf("%05d| %s", lineNum, line))
	}

	var sb strings.Builder
	sb.WriteString("<file>\n")
	sb.WriteString(strings.Join(lines, "\n"))

	lastReadLine := offset + len(lines)
	if lineNum > lastReadLine {
		sb.WriteString(fmt.Sprintf("\n\n(File has more lines. Use offset to read beyond line %d)", lastReadLine))
	} else {
		sb.WriteString(fmt.Sprintf("\n\n(End of file - total %d lines)", lineNum))
	}
	sb.WriteString("\n</file>")

	return toolcatalog.Outcome{
		Status: toolcatalog.StatusSuccess,
		Result: map[string]any{
			"output":     sb.String(),
			"file":       path,
			"lines":      len(lines),
			"totalLines": lineNum,
		},
	}
}

func readImageOutcome(path string) toolcatalog.Outcome {
	data, err := os.ReadFile(path)
	if err != nil {
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
	}
	mediaType := detectMediaType(path)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
	return toolcatalog.Outcome{
		Status: toolcatalog.StatusSuccess,
		Result: map[string]any{
			"output":    "(Image file)",
			"mediaType": mediaType,
			"dataURL":   dataURL,
			"filename":  filepath.Base(path),
		},
	}
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	default:
		return false
	}
}

func isBinaryFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	buf := make([]byte, 8000)
	n, _ := file.Read(buf)
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
	}
	nonPrintable := 0
	for i := 0; i < n; i++ {
		if buf[i] < 32 && buf[i] != '\n' && buf[i] != '\r' && buf[i] != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(n) > 0.3
}

func detectMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// shouldBlockEnvFile blocks reads of .env files, except the common sample
// patterns (.env.sample, .example suffixes) that are safe to inspect.
func shouldBlockEnvFile(path string) bool {
	for _, whitelisted := range []string{".env.sample", ".example"} {
		if strings.HasSuffix(path, whitelisted) {
			return false
		}
	}
	return strings.Contains(path, ".env")
}
