package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/daemonctl/daemonctl/internal/provider"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// minMessagesToKeep is the tail length a compaction always preserves
// verbatim, regardless of MaxContextTokens. Mirrors the teacher's
// DefaultCompactionConfig.MinMessagesToKeep.
const minMessagesToKeep = 4

// compactionSystemPrompt primes the summarization completion. Adapted from
// the teacher's compaction prompt, trimmed to this log's flatter shape
// (no separate Parts per message).
const compactionSystemPrompt = `You are summarizing a long-running session log so it can continue in a bounded context. Produce a concise summary covering:

- Key decisions and outcomes so far
- Files or resources that were modified
- Important context needed to continue the work

Be factual and terse. Do not invent information that isn't in the log.`

// estimateTokens is a rough, provider-agnostic size heuristic: about four
// characters per token. Good enough to gate compaction; not used for
// billing.
func estimateTokens(text string) int {
	return len(text) / 4
}

// shouldCompact reports whether messages' estimated size has crossed cfg's
// threshold. Disabled configs, or logs no longer than the tail compaction
// always keeps, are never compacted.
func shouldCompact(cfg types.CompactionConfig, messages []types.Message) bool {
	if !cfg.Enabled || cfg.MaxContextTokens <= 0 {
		return false
	}
	if len(messages) <= minMessagesToKeep {
		return false
	}
	return estimateTokens(totalContent(messages)) >= cfg.MaxContextTokens
}

func totalContent(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
	}
	return b.String()
}

// buildSummaryPrompt renders the messages being compacted away into the
// user-turn prompt asking the model to summarize them.
func buildSummaryPrompt(messages []types.Message) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation log:\n\n")
	for _, m := range messages {
		switch m.Role {
		case types.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case types.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "  called %s\n", tc.Name)
			}
		case types.RoleTool:
			fmt.Fprintf(&b, "Tool result (%s): %s\n", m.Name, m.Content)
		}
	}
	return b.String()
}

// maybeCompact runs the compaction step before a completion request is
// built: if sess's log has grown past cfg's threshold, it asks the host for
// a summarization completion over everything but the last minMessagesToKeep
// messages, then persists the result, replacing the compacted span with one
// synthetic system message. Returns the session unchanged if compaction
// didn't trigger.
func (l *Loop) maybeCompact(ctx context.Context, cfg types.CompactionConfig, sess *types.Session) (*types.Session, error) {
	if !shouldCompact(cfg, sess.Messages) {
		return sess, nil
	}

	toCompact := sess.Messages[:len(sess.Messages)-minMessagesToKeep]
	prompt := buildSummaryPrompt(toCompact)

	providerID, modelID := provider.ParseModelString(sess.Model)
	merged, err := requestCompletion(ctx, l.bridge, providerID, modelID, compactionSystemPrompt,
		[]types.Message{{Role: types.RoleUser, Content: prompt}}, nil, l.maxTokens)
	if err != nil {
		return sess, fmt.Errorf("agentloop: compaction summary: %w", err)
	}

	updated, err := l.manager.CompactMessages(l.sessionID, merged.Content, minMessagesToKeep)
	if err != nil {
		return sess, fmt.Errorf("agentloop: compact messages: %w", err)
	}
	return updated, nil
}
