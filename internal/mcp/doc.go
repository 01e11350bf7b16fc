// Package mcp is an MCP (Model Context Protocol) client: it connects to
// external tool servers over stdio, a local command, or remote HTTP/SSE,
// and exposes their tools and resources. Server prompts are not fetched.
//
// RegisterTools (catalog.go) folds a connected client's tools into a
// toolcatalog.Registry as ordinary Definitions, so once registered an MCP
// tool is indistinguishable from a built-in to the agent loop and the
// allowlist/approval pipeline.
package mcp
