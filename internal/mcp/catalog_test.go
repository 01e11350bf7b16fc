package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
	"github.com/daemonctl/daemonctl/pkg/types"
)

func TestConfigFromTypesInfersStdioWithoutURL(t *testing.T) {
	cfg := ConfigFromTypes(types.MCPConfig{
		Enabled: true,
		Command: []string{"calculator-mcp"},
	})
	assert.Equal(t, TransportTypeStdio, cfg.Type)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"calculator-mcp"}, cfg.Command)
}

func TestConfigFromTypesInfersRemoteWithURL(t *testing.T) {
	cfg := ConfigFromTypes(types.MCPConfig{
		Enabled: true,
		URL:     "http://localhost:9000",
	})
	assert.Equal(t, TransportTypeRemote, cfg.Type)
	assert.Equal(t, "http://localhost:9000", cfg.URL)
}

func TestRegisterToolsNilClientIsNoop(t *testing.T) {
	reg := toolcatalog.NewRegistry()
	RegisterTools(reg, nil)
	assert.Empty(t, reg.List())
}

func TestRegisterToolsEmptyClientRegistersNothing(t *testing.T) {
	reg := toolcatalog.NewRegistry()
	client := NewClient()
	RegisterTools(reg, client)
	assert.Empty(t, reg.List())
}

func TestMCPDefinitionDefaultsEmptySchema(t *testing.T) {
	client := NewClient()
	def := mcpDefinition(client, Tool{Name: "search", Description: "looks things up"})
	require.Equal(t, "search", def.Name)
	assert.Equal(t, "looks things up", def.Help)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(def.Parameters))
}

func TestMCPDefinitionHandlerFailsWhenToolNotConnected(t *testing.T) {
	client := NewClient()
	def := mcpDefinition(client, Tool{Name: "search"})
	out := def.Handler(toolcatalog.Invocation{Args: map[string]any{"q": "go"}})
	assert.Equal(t, toolcatalog.StatusFailure, out.Status)
	assert.NotEmpty(t, out.Error)
}
