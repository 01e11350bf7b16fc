package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonctl/daemonctl/pkg/types"
)

func TestFindActionableEmptyLog(t *testing.T) {
	_, _, _, ok := findActionable(nil)
	assert.False(t, ok)
}

func TestFindActionableTrailingUserMessage(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
	}
	msg, idx, resuming, ok := findActionable(messages)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.False(t, resuming)
	assert.Equal(t, types.RoleUser, msg.Role)
}

func TestFindActionableAssistantWithNoToolCallsIsNotActionable(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "done", FinishReason: "stop"},
	}
	_, _, _, ok := findActionable(messages)
	assert.False(t, ok)
}

func TestFindActionableAssistantWithUnresolvedToolCalls(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{{ID: "call_1", Name: "bash__run"}}},
	}
	msg, idx, resuming, ok := findActionable(messages)
	require.True(t, ok)
	assert.True(t, resuming)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
}

func TestFindActionablePartiallyResolvedToolCallsStaysOnAssistant(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "bash__run"},
			{ID: "call_2", Name: "read__file"},
		}},
		{Role: types.RoleTool, ToolCallID: "call_1", Content: "ok"},
	}
	msg, idx, resuming, ok := findActionable(messages)
	require.True(t, ok)
	assert.True(t, resuming)
	assert.Equal(t, 1, idx)

	pending := unresolvedCalls(msg, messages[idx+1:])
	require.Len(t, pending, 1)
	assert.Equal(t, "call_2", pending[0].ID)
}

func TestFindActionableAllToolCallsResolvedFallsThroughToTrailingToolMessage(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{{ID: "call_1"}}},
		{Role: types.RoleTool, ToolCallID: "call_1", Content: "ok"},
	}
	msg, idx, resuming, ok := findActionable(messages)
	require.True(t, ok)
	assert.False(t, resuming)
	assert.Equal(t, 2, idx)
	assert.Equal(t, types.RoleTool, msg.Role)
}
