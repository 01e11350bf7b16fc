package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSystemPromptSubstitutesHostname(t *testing.T) {
	got := renderSystemPrompt("agent running on {{.Hostname}}")
	assert.NotContains(t, got, "{{.Hostname}}")
	assert.Contains(t, got, "agent running on")
}

func TestRenderSystemPromptNoMarkersUnchanged(t *testing.T) {
	got := renderSystemPrompt("a plain system prompt")
	assert.Equal(t, "a plain system prompt", got)
}

func TestRenderSystemPromptMalformedFallsBackToRaw(t *testing.T) {
	raw := "unterminated {{ .Hostname"
	got := renderSystemPrompt(raw)
	assert.Equal(t, raw, got)
}

func TestRenderSystemPromptReadsEnv(t *testing.T) {
	t.Setenv("AGENTLOOP_TEST_VAR", "xyz123")
	got := renderSystemPrompt(`value is {{index .Env "AGENTLOOP_TEST_VAR"}}`)
	assert.Contains(t, got, "xyz123")
}
