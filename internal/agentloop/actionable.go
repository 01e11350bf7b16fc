package agentloop

import "github.com/daemonctl/daemonctl/pkg/types"

// findActionable locates the message a tick should act on: a trailing user
// or tool message, or the most recent assistant message whose tool_calls
// have not all produced a matching tool result later in the log. The
// latter case can be an interior message once some, but not all, of its
// tool calls have already been resolved and appended after it within an
// earlier tick — HasPendingToolCalls alone can't see that, since it has no
// view of later messages, so this scans rather than just checking the
// last entry.
func findActionable(messages []types.Message) (msg types.Message, index int, resuming bool, ok bool) {
	if len(messages) == 0 {
		return types.Message{}, 0, false, false
	}

	last := messages[len(messages)-1]
	if last.Role == types.RoleUser {
		return last, len(messages) - 1, false, true
	}

	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != types.RoleAssistant {
			continue
		}
		if len(m.ToolCalls) > 0 && hasUnresolvedCalls(m, messages[i+1:]) {
			return m, i, true, true
		}
		break
	}

	if last.Role == types.RoleTool {
		return last, len(messages) - 1, false, true
	}
	return types.Message{}, 0, false, false
}

// hasUnresolvedCalls reports whether any of msg's tool calls lack a
// matching tool-role message among following.
func hasUnresolvedCalls(msg types.Message, following []types.Message) bool {
	resolved := make(map[string]bool, len(following))
	for _, m := range following {
		if m.Role == types.RoleTool && m.ToolCallID != "" {
			resolved[m.ToolCallID] = true
		}
	}
	for _, tc := range msg.ToolCalls {
		if !resolved[tc.ID] {
			return true
		}
	}
	return false
}

// unresolvedCalls filters msg's tool calls down to the ones without a
// matching tool result among following.
func unresolvedCalls(msg types.Message, following []types.Message) []types.ToolCall {
	resolved := make(map[string]bool, len(following))
	for _, m := range following {
		if m.Role == types.RoleTool && m.ToolCallID != "" {
			resolved[m.ToolCallID] = true
		}
	}
	pending := make([]types.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		if !resolved[tc.ID] {
			pending = append(pending, tc)
		}
	}
	return pending
}
