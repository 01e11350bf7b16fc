package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

const (
	maxResponseSize   = 5 * 1024 * 1024
	defaultFetchDelay = 30 * time.Second
	maxFetchTimeout   = 120 * time.Second
)

const webFetchHelp = `Fetches content from a URL and returns it as text, markdown, or raw HTML.

- url must start with http:// or https://
- format is one of "text", "markdown", "html"
- Results over 5MB are rejected rather than truncated silently`

const webFetchParameters = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "The URL to fetch content from"},
		"format": {"type": "string", "enum": ["text", "markdown", "html"]},
		"timeoutSec": {"type": "integer", "description": "Optional timeout in seconds (max 120)"}
	},
	"required": ["url", "format"]
}`

// webFetchDefinition declares web__fetch, grounded directly on the
// teacher's internal/tool/webfetch.go: the same Accept-header-per-format
// negotiation, the same 5MB cap, and the same html-to-markdown/goquery
// conversion libraries.
func webFetchDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:       "web__fetch",
		Parameters: []byte(webFetchParameters),
		Help:       webFetchHelp,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			rawURL, _ := inv.Args["url"].(string)
			format, _ := inv.Args["format"].(string)
			timeoutSec, _ := inv.Args["timeoutSec"].(float64)

			if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "url must start with http:// or https://"}
			}
			switch format {
			case "text", "markdown", "html":
			default:
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: `format must be "text", "markdown", or "html"`}
			}

			timeout := defaultFetchDelay
			if timeoutSec > 0 {
				timeout = time.Duration(timeoutSec) * time.Second
				if timeout > maxFetchTimeout {
					timeout = maxFetchTimeout
				}
			}

			ctx, cancel := contextWithTimeout(inv, timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
			}
			req.Header.Set("User-Agent", "daemonctl-agent/1.0")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")
			switch format {
			case "markdown":
				req.Header.Set("Accept", "text/markdown;q=1.0, text/plain;q=0.8, text/html;q=0.7, */*;q=0.1")
			case "text":
				req.Header.Set("Accept", "text/plain;q=1.0, text/html;q=0.8, */*;q=0.1")
			case "html":
				req.Header.Set("Accept", "text/html;q=1.0, */*;q=0.1")
			}

			client := deps.HTTPClient
			resp, err := client.Do(req)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("request failed: %v", err)}
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("request failed with status %d", resp.StatusCode)}
			}
			if resp.ContentLength > maxResponseSize {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "response exceeds 5MB limit"}
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("failed to read response: %v", err)}
			}
			if len(body) > maxResponseSize {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "response exceeds 5MB limit"}
			}

			content := string(body)
			contentType := resp.Header.Get("Content-Type")
			output := content
			var convErr error
			switch format {
			case "markdown":
				if strings.Contains(contentType, "text/html") {
					output, convErr = htmlToMarkdown(content)
				}
			case "text":
				if strings.Contains(contentType, "text/html") {
					output, convErr = htmlToText(content)
				}
			}
			if convErr != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: convErr.Error()}
			}

			return toolcatalog.Outcome{
				Status: toolcatalog.StatusSuccess,
				Result: map[string]any{
					"output":      output,
					"url":         rawURL,
					"contentType": contentType,
				},
			}
		},
	}
}

func htmlToMarkdown(html string) (string, error) {
	return md.NewConverter("", true, nil).ConvertString(html)
}

func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Text()), nil
}

const webSearchHelp = `Searches the web via Google Custom Search and returns ranked results.

Requires GOOGLE_API_KEY and GOOGLE_CX to be configured on the host; the
child never holds these credentials, so this tool is RequiresHostExecution.`

const webSearchParameters = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "The search query"},
		"count": {"type": "integer", "description": "Number of results to return (max 10)"}
	},
	"required": ["query"]
}`

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// webSearchDefinition declares web__search as a RequiresHostExecution tool:
// §6 of spec.md lists GOOGLE_CX as an environment variable "consumed by
// the host... for the web-search tool", which this implements against the
// Google Custom Search JSON API (no example repo in the pack wires a
// dedicated search SDK, so this calls the documented REST endpoint
// directly with the already-wired net/http client).
func webSearchDefinition(deps *Dependencies) toolcatalog.Definition {
	return toolcatalog.Definition{
		Name:                  "web__search",
		Parameters:            []byte(webSearchParameters),
		Help:                  webSearchHelp,
		RequiresHostExecution: true,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			query, _ := inv.Args["query"].(string)
			count, _ := inv.Args["count"].(float64)
			if query == "" {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "query is required"}
			}
			if count <= 0 || count > 10 {
				count = 10
			}
			if deps.GoogleAPIKey == "" || deps.GoogleCX == "" {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "web search is not configured (GOOGLE_API_KEY/GOOGLE_CX missing)"}
			}

			endpoint := fmt.Sprintf(
				"https://www.googleapis.com/customsearch/v1?key=%s&cx=%s&q=%s&num=%d",
				url.QueryEscape(deps.GoogleAPIKey), url.QueryEscape(deps.GoogleCX), url.QueryEscape(query), int(count),
			)

			ctx, cancel := contextWithTimeout(inv, defaultFetchDelay)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
			}
			resp, err := deps.HTTPClient.Do(req)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("search request failed: %v", err)}
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("search request failed with status %d", resp.StatusCode)}
			}

			var parsed googleSearchResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("failed to decode search response: %v", err)}
			}

			var sb strings.Builder
			for i, item := range parsed.Items {
				fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n\n", i+1, item.Title, item.Link, item.Snippet)
			}
			if len(parsed.Items) == 0 {
				sb.WriteString("No results found")
			}

			return toolcatalog.Outcome{
				Status: toolcatalog.StatusSuccess,
				Result: map[string]any{
					"output": strings.TrimSpace(sb.String()),
					"query":  query,
					"count":  len(parsed.Items),
				},
			}
		},
	}
}
