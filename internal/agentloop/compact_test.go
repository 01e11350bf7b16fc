package agentloop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daemonctl/daemonctl/pkg/types"
)

func TestEstimateTokensRoughlyFourCharsPerToken(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 2, estimateTokens("12345678"))
}

func TestShouldCompactDisabledConfig(t *testing.T) {
	cfg := types.CompactionConfig{Enabled: false, MaxContextTokens: 1}
	messages := make([]types.Message, 10)
	assert.False(t, shouldCompact(cfg, messages))
}

func TestShouldCompactZeroMaxContextTokens(t *testing.T) {
	cfg := types.CompactionConfig{Enabled: true, MaxContextTokens: 0}
	messages := make([]types.Message, 10)
	assert.False(t, shouldCompact(cfg, messages))
}

func TestShouldCompactShortLogNeverCompacts(t *testing.T) {
	cfg := types.CompactionConfig{Enabled: true, MaxContextTokens: 1}
	messages := make([]types.Message, minMessagesToKeep)
	assert.False(t, shouldCompact(cfg, messages))
}

func TestShouldCompactUnderThreshold(t *testing.T) {
	cfg := types.CompactionConfig{Enabled: true, MaxContextTokens: 1000}
	messages := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
		{Role: types.RoleUser, Content: "bye"},
		{Role: types.RoleAssistant, Content: "goodbye"},
		{Role: types.RoleUser, Content: "one more"},
	}
	assert.False(t, shouldCompact(cfg, messages))
}

func TestShouldCompactOverThreshold(t *testing.T) {
	cfg := types.CompactionConfig{Enabled: true, MaxContextTokens: 10}
	messages := []types.Message{
		{Role: types.RoleUser, Content: strings.Repeat("x", 100)},
		{Role: types.RoleAssistant, Content: strings.Repeat("y", 100)},
		{Role: types.RoleUser, Content: "a"},
		{Role: types.RoleAssistant, Content: "b"},
		{Role: types.RoleUser, Content: "c"},
	}
	assert.True(t, shouldCompact(cfg, messages))
}

func TestBuildSummaryPromptIncludesRolesAndToolCalls(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "fix the bug"},
		{Role: types.RoleAssistant, Content: "looking into it", ToolCalls: []types.ToolCall{{ID: "1", Name: "bash__run"}}},
		{Role: types.RoleTool, Name: "bash__run", Content: "exit 0"},
	}
	prompt := buildSummaryPrompt(messages)
	assert.Contains(t, prompt, "User: fix the bug")
	assert.Contains(t, prompt, "Assistant: looking into it")
	assert.Contains(t, prompt, "called bash__run")
	assert.Contains(t, prompt, "Tool result (bash__run): exit 0")
}

func TestBuildSummaryPromptEmptyLog(t *testing.T) {
	prompt := buildSummaryPrompt(nil)
	assert.Contains(t, prompt, "Summarize the following conversation log")
}
