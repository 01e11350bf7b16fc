package agentloop

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/cloudwego/eino/schema"

	"github.com/daemonctl/daemonctl/internal/provider"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// streamMerger folds a sequence of streamed message chunks into a single
// assistant message: content deltas are concatenated, tool call deltas are
// accumulated by index into complete calls, and the merged finish_reason is
// "tool_calls" if any chunk reported one, else the last chunk's reason.
// Eino exposes one choice per completion rather than the parallel-choices
// array some provider APIs return for n>1 sampling, so "merging all
// choices" here means merging all chunks of that one choice.
type streamMerger struct {
	content      string
	finishReason string
	sawToolCalls bool

	order []string
	calls map[string]*partialToolCall
}

type partialToolCall struct {
	id        string
	name      string
	arguments string
}

func newStreamMerger() *streamMerger {
	return &streamMerger{calls: make(map[string]*partialToolCall)}
}

func (m *streamMerger) add(chunk *schema.Message) {
	if chunk == nil {
		return
	}

	m.content += chunk.Content

	for _, tc := range chunk.ToolCalls {
		key := toolCallKey(tc)
		p, ok := m.calls[key]
		if !ok {
			p = &partialToolCall{}
			m.calls[key] = p
			m.order = append(m.order, key)
		}
		if tc.ID != "" {
			p.id = tc.ID
		}
		if tc.Function.Name != "" {
			p.name = tc.Function.Name
		}
		p.arguments += tc.Function.Arguments
	}

	if chunk.ResponseMeta != nil && chunk.ResponseMeta.FinishReason != "" {
		m.finishReason = chunk.ResponseMeta.FinishReason
		if m.finishReason == "tool_calls" || m.finishReason == "tool_use" {
			m.sawToolCalls = true
		}
	}
}

func (m *streamMerger) result() types.Message {
	toolCalls := make([]types.ToolCall, 0, len(m.order))
	for _, key := range m.order {
		p := m.calls[key]
		var args map[string]any
		if p.arguments != "" {
			_ = json.Unmarshal([]byte(p.arguments), &args)
		}
		toolCalls = append(toolCalls, types.ToolCall{ID: p.id, Name: p.name, Args: args})
	}

	finishReason := m.finishReason
	if m.sawToolCalls {
		finishReason = "tool_calls"
	}

	return types.Message{
		Role:         types.RoleAssistant,
		Content:      m.content,
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
	}
}

// toolCallKey groups delta chunks belonging to the same tool call. Eino
// carries an Index for this; fall back to the call's own ID when a
// provider adapter doesn't set one.
func toolCallKey(tc schema.ToolCall) string {
	if tc.Index != nil {
		return "idx:" + strconv.Itoa(*tc.Index)
	}
	return "id:" + tc.ID
}

// mergeStream drains every chunk a CompletionStream produces through a
// streamMerger and returns the merged assistant message.
func mergeStream(stream *provider.CompletionStream) (types.Message, error) {
	m := newStreamMerger()
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.Message{}, err
		}
		m.add(chunk)
	}
	return m.result(), nil
}
