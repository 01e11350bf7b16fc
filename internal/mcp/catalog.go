package mcp

import (
	"context"
	"encoding/json"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// ConfigFromTypes converts the daemon's config.yml MCP entries into this
// package's Config shape.
func ConfigFromTypes(c types.MCPConfig) *Config {
	transport := TransportTypeStdio
	if c.URL != "" {
		transport = TransportTypeRemote
	}
	return &Config{
		Enabled:     c.Enabled,
		Type:        transport,
		URL:         c.URL,
		Command:     c.Command,
		Environment: c.Environment,
	}
}

// RegisterTools declares one toolcatalog.Definition per tool client already
// discovered from its connected servers, so an MCP tool is dispatched and
// gated by the allowlist/approval pipeline exactly like a built-in: the
// Tool Registry has no notion of "external" once a Definition is in it.
// Grounded on the teacher's mcp.RegisterMCPTools, rebased from
// internal/tool.Registry onto toolcatalog.Registry.
func RegisterTools(reg *toolcatalog.Registry, client *Client) {
	if client == nil || reg == nil {
		return
	}
	for _, t := range client.Tools() {
		reg.Register(mcpDefinition(client, t))
	}
}

func mcpDefinition(client *Client, t Tool) toolcatalog.Definition {
	params := t.InputSchema
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return toolcatalog.Definition{
		Name:       t.Name,
		Parameters: params,
		Help:       t.Description,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			argsJSON, err := json.Marshal(inv.Args)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
			}
			ctx := inv.Ctx
			if ctx == nil {
				ctx = context.Background()
			}
			output, err := client.ExecuteTool(ctx, t.Name, argsJSON)
			if err != nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
			}
			return toolcatalog.Outcome{Status: toolcatalog.StatusSuccess, Result: output}
		},
	}
}
