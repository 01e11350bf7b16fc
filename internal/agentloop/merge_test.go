package agentloop

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonctl/daemonctl/pkg/types"
)

func TestStreamMergerConcatenatesContent(t *testing.T) {
	m := newStreamMerger()
	m.add(&schema.Message{Content: "Hello"})
	m.add(&schema.Message{Content: ", world"})
	m.add(&schema.Message{ResponseMeta: &schema.ResponseMeta{FinishReason: "stop"}})

	got := m.result()
	assert.Equal(t, "Hello, world", got.Content)
	assert.Equal(t, "stop", got.FinishReason)
	assert.Equal(t, types.RoleAssistant, got.Role)
	assert.Empty(t, got.ToolCalls)
}

func TestStreamMergerAccumulatesToolCallByIndex(t *testing.T) {
	idx0 := 0
	m := newStreamMerger()
	m.add(&schema.Message{ToolCalls: []schema.ToolCall{
		{Index: &idx0, ID: "call_1", Function: schema.FunctionCall{Name: "bash__run", Arguments: `{"comm`}},
	}})
	m.add(&schema.Message{ToolCalls: []schema.ToolCall{
		{Index: &idx0, Function: schema.FunctionCall{Arguments: `and":"ls"}`}},
	}})
	m.add(&schema.Message{ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_calls"}})

	got := m.result()
	require.Len(t, got.ToolCalls, 1)
	assert.Equal(t, "call_1", got.ToolCalls[0].ID)
	assert.Equal(t, "bash__run", got.ToolCalls[0].Name)
	assert.Equal(t, "ls", got.ToolCalls[0].Args["command"])
	assert.Equal(t, "tool_calls", got.FinishReason)
}

func TestStreamMergerKeepsMultipleToolCallsSeparate(t *testing.T) {
	idx0, idx1 := 0, 1
	m := newStreamMerger()
	m.add(&schema.Message{ToolCalls: []schema.ToolCall{
		{Index: &idx0, ID: "call_1", Function: schema.FunctionCall{Name: "read__file", Arguments: `{"path":"a"}`}},
		{Index: &idx1, ID: "call_2", Function: schema.FunctionCall{Name: "read__file", Arguments: `{"path":"b"}`}},
	}})

	got := m.result()
	require.Len(t, got.ToolCalls, 2)
	assert.Equal(t, "call_1", got.ToolCalls[0].ID)
	assert.Equal(t, "call_2", got.ToolCalls[1].ID)
}

func TestStreamMergerFinishReasonPrefersToolCalls(t *testing.T) {
	m := newStreamMerger()
	m.add(&schema.Message{ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_calls"}})
	m.add(&schema.Message{ResponseMeta: &schema.ResponseMeta{FinishReason: "stop"}})

	got := m.result()
	assert.Equal(t, "tool_calls", got.FinishReason)
}

func TestStreamMergerFallsBackToIDWhenIndexMissing(t *testing.T) {
	m := newStreamMerger()
	m.add(&schema.Message{ToolCalls: []schema.ToolCall{
		{ID: "call_1", Function: schema.FunctionCall{Name: "bash__run", Arguments: `{}`}},
	}})
	m.add(&schema.Message{ToolCalls: []schema.ToolCall{
		{ID: "call_1", Function: schema.FunctionCall{Arguments: ``}},
	}})

	got := m.result()
	require.Len(t, got.ToolCalls, 1)
}
