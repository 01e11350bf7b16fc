package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/logging"
	"github.com/daemonctl/daemonctl/internal/provider"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// DefaultTickInterval is how often a Loop re-examines its session when the
// host config doesn't override it.
const DefaultTickInterval = 2 * time.Second

// DefaultMaxOutputTokens bounds a completion request when NewLoop is given
// no positive maxTokens.
const DefaultMaxOutputTokens = 4096

// Loop drives one session's agent execution loop inside its child process:
// a startup sequence, then a tick every TickInterval that reloads the
// session, decides whether there's anything to act on, and if so talks to
// the host over the bridge (for the provider call and any host-routed tool)
// or runs a local tool directly.
type Loop struct {
	sessionID    int64
	manager      *session.Manager
	catalog      *toolcatalog.Registry
	bridge       *bridge.ChildBridge
	tracker      *pendingTracker
	guard        *retryGuard
	tickInterval time.Duration
	maxTokens    int
	compaction   types.CompactionConfig

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewLoop wires a Loop for sessionID. manager must already be rooted at the
// child's local view of the session store (the session file seeded inside
// the workspace) and catalog at the tool set this child knows how to run
// locally. The bridge is attached afterwards with SetBridge.
func NewLoop(manager *session.Manager, catalog *toolcatalog.Registry, sessionID int64, tickInterval time.Duration, maxTokens int, compaction types.CompactionConfig) *Loop {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return &Loop{
		sessionID:    sessionID,
		manager:      manager,
		catalog:      catalog,
		tracker:      newPendingTracker(),
		guard:        newRetryGuard(),
		tickInterval: tickInterval,
		maxTokens:    maxTokens,
		compaction:   compaction,
	}
}

// SetBridge attaches an already-dialed bridge connection. The caller dials
// via bridge.DialHost(paths, sessionID, loop.HandleUnsolicited) so the
// handler closure can reference the Loop once it exists, then passes the
// result here before calling Run.
func (l *Loop) SetBridge(cb *bridge.ChildBridge) {
	l.bridge = cb
}

// HandleUnsolicited processes a message the host pushed without a prior
// Call from this child: an approval or question answer injects
// externalData into the corresponding ToolCallState and wakes the session
// back up; anything else is logged and dropped.
func (l *Loop) HandleUnsolicited(msg bridge.Message) {
	switch msg.Type {
	case bridge.TypeApprovalResponse:
		if msg.ToolCallID == "" {
			logging.Logger.Warn().Int64("session", l.sessionID).Msg("approval_response with no tool_call_id")
			return
		}
		l.tracker.injectExternalData(msg.ToolCallID, map[string]any{
			"approvalReceived": true,
			"choice":           msg.ApprovalChoice,
			"comment":          msg.ApprovalComment,
		})
		if _, err := l.manager.Transition(l.sessionID, session.ActionResume); err != nil {
			logging.Logger.Warn().Err(err).Int64("session", l.sessionID).Msg("resume after approval_response")
		}
	case bridge.TypeQuestionResponse:
		if msg.ToolCallID == "" {
			logging.Logger.Warn().Int64("session", l.sessionID).Msg("question_response with no tool_call_id")
			return
		}
		l.tracker.injectExternalData(msg.ToolCallID, map[string]any{
			"answered": true,
			"answer":   msg.Answer,
		})
		if _, err := l.manager.Transition(l.sessionID, session.ActionResume); err != nil {
			logging.Logger.Warn().Err(err).Int64("session", l.sessionID).Msg("resume after question_response")
		}
	default:
		logging.Logger.Debug().Str("type", string(msg.Type)).Msg("agentloop: unsolicited message ignored")
	}
}

// Run executes the startup sequence and then ticks until the session
// reaches a terminal status, the context is cancelled, or SIGUSR2 stops it.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.startup(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				logging.Logger.Info().Int64("session", l.sessionID).Msg("agentloop: pause signal")
				l.cancelTick()
				if _, err := l.manager.Transition(l.sessionID, session.ActionPause); err != nil {
					logging.Logger.Warn().Err(err).Msg("agentloop: pause transition")
				}
			case syscall.SIGUSR2:
				logging.Logger.Info().Int64("session", l.sessionID).Msg("agentloop: stop signal")
				l.cancelTick()
				if _, err := l.manager.Transition(l.sessionID, session.ActionStop); err != nil {
					logging.Logger.Warn().Err(err).Msg("agentloop: stop transition")
				}
				return nil
			}

		case <-ticker.C:
			stop, err := l.tick(ctx)
			if err != nil {
				logging.Logger.Error().Err(err).Int64("session", l.sessionID).Msg("agentloop: tick")
				continue
			}
			if stop {
				return nil
			}
		}
	}
}

func (l *Loop) cancelTick() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// startup transitions a fresh PENDING session to RUNNING and renders its
// system prompt exactly once, in the child's own environment.
func (l *Loop) startup(ctx context.Context) error {
	sess, err := l.manager.Get(l.sessionID)
	if err != nil {
		return fmt.Errorf("agentloop: startup get: %w", err)
	}

	if sess.Status == types.StatusPending {
		sess, err = l.manager.Transition(l.sessionID, session.ActionStart)
		if err != nil {
			return fmt.Errorf("agentloop: startup transition: %w", err)
		}
	}

	if !sess.PromptEvaluated {
		rendered := renderSystemPrompt(sess.SystemPrompt)
		if _, err := l.manager.EvaluateSystemPrompt(l.sessionID, rendered); err != nil {
			return fmt.Errorf("agentloop: evaluate system prompt: %w", err)
		}
	}

	return nil
}

// tick runs one round of the execution loop: reload, decide, act. It
// returns stop=true once the session has reached a terminal status and the
// loop should exit.
func (l *Loop) tick(parent context.Context) (stop bool, err error) {
	ctx, cancel := context.WithCancel(parent)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()

	sess, err := l.manager.Get(l.sessionID)
	if err != nil {
		return false, fmt.Errorf("agentloop: tick get: %w", err)
	}

	switch sess.Status {
	case types.StatusPaused:
		return false, nil
	case types.StatusPending:
		sess, err = l.manager.Transition(l.sessionID, session.ActionStart)
		if err != nil {
			return false, fmt.Errorf("agentloop: tick start: %w", err)
		}
	case types.StatusStopped, types.StatusSuccess, types.StatusError:
		return true, nil
	case types.StatusRunning:
		// proceed
	}

	msg, idx, resuming, ok := findActionable(sess.Messages)
	if !ok {
		return false, nil
	}

	allowed := resolveAllowedTools(l.catalog, sess.ToolAllowlist)
	infos := toolInfos(allowed)

	if msg.Role == types.RoleAssistant {
		return false, l.processToolCalls(ctx, sess, msg, idx, resuming)
	}

	return l.requestAndHandle(ctx, sess, infos)
}

// requestAndHandle runs the ai_prompt_request half of a tick: it asks the
// host for a completion against the current log and either appends tool
// calls for processing, completes the session, or leaves an ordinary
// assistant reply in place for a human to react to.
func (l *Loop) requestAndHandle(ctx context.Context, sess *types.Session, infos []provider.ToolInfo) (bool, error) {
	if l.guard.blocked(l.sessionID, len(sess.Messages)) {
		return false, nil
	}

	sess, err := l.maybeCompact(ctx, l.compaction, sess)
	if err != nil {
		logging.Logger.Warn().Err(err).Int64("session", l.sessionID).Msg("agentloop: compaction")
	}

	providerID, modelID := provider.ParseModelString(sess.Model)
	merged, err := requestCompletion(ctx, l.bridge, providerID, modelID, sess.SystemPrompt, sess.Messages, infos, l.maxTokens)
	if err != nil {
		l.guard.recordFailure(l.sessionID, len(sess.Messages))
		logging.Logger.Warn().Err(err).Int64("session", l.sessionID).Msg("agentloop: ai_prompt_request failed")
		return false, nil
	}
	l.guard.clear(l.sessionID)
	merged.Timestamp = time.Now().Unix()

	if len(merged.ToolCalls) > 0 {
		if _, err := l.manager.AppendMessage(l.sessionID, merged); err != nil {
			return false, fmt.Errorf("agentloop: append assistant message: %w", err)
		}
		return false, l.runToolCalls(ctx, l.sessionID, merged.ToolCalls)
	}

	if _, err := l.manager.AppendMessage(l.sessionID, merged); err != nil {
		return false, fmt.Errorf("agentloop: append assistant message: %w", err)
	}

	switch merged.FinishReason {
	case "stop", "end_turn":
		if _, err := l.manager.Transition(l.sessionID, session.ActionComplete); err != nil {
			return false, fmt.Errorf("agentloop: complete transition: %w", err)
		}
		return true, nil
	default:
		// No tool calls and not a turn-ending reason (truncated output,
		// content filter, or an adapter that didn't set one): leave the
		// reply in the log. The session stays RUNNING; nothing in it is
		// actionable again until a new user message arrives.
		return false, nil
	}
}

// processToolCalls resumes a previously-appended assistant message whose
// tool_calls weren't all resolved yet.
func (l *Loop) processToolCalls(ctx context.Context, sess *types.Session, msg types.Message, idx int, resuming bool) error {
	pending := msg.ToolCalls
	if resuming {
		pending = unresolvedCalls(msg, sess.Messages[idx+1:])
	}
	return l.runToolCalls(ctx, l.sessionID, pending)
}

// runToolCalls dispatches each of calls in order, appending a tool result
// message for every one that reaches a terminal status and leaving RUNNING
// ones for the next tick to pick back up via findActionable.
func (l *Loop) runToolCalls(ctx context.Context, sessionID int64, calls []types.ToolCall) error {
	for _, tc := range calls {
		outcome, err := childDispatch(ctx, l.catalog, l.bridge, l.tracker, sessionID, tc.ID, tc.Name, tc.Args)
		if err != nil {
			outcome = toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
		}
		if outcome.Status == toolcatalog.StatusRunning {
			// A RUNNING outcome always means this call is waiting on
			// something outside the tick loop (an approval, an answered
			// question): pause per §4.4/§4.7 so the session sits still
			// until HandleUnsolicited's resume wakes it back up. Already
			// being PAUSED (a second RUNNING call in the same batch) is
			// not an error, just a no-op transition attempt.
			if _, err := l.manager.Transition(sessionID, session.ActionPause); err != nil {
				logging.Logger.Debug().Err(err).Int64("session", sessionID).Msg("agentloop: pause on RUNNING tool call")
			}
			continue
		}

		result := types.Message{
			Role:       types.RoleTool,
			ToolCallID: tc.ID,
			Name:       tc.Name,
			Content:    outcomeContent(outcome),
			Timestamp:  time.Now().Unix(),
		}
		if _, err := l.manager.AppendMessage(sessionID, result); err != nil {
			return fmt.Errorf("agentloop: append tool result for %s: %w", tc.ID, err)
		}
	}
	return nil
}

// outcomeContent renders a tool Outcome into the text a model sees as the
// tool message's content.
func outcomeContent(outcome toolcatalog.Outcome) string {
	if outcome.Status == toolcatalog.StatusFailure {
		if outcome.Error != "" {
			return outcome.Error
		}
		return "tool call failed"
	}
	if outcome.Result == nil {
		return ""
	}
	if s, ok := outcome.Result.(string); ok {
		return s
	}
	raw, err := json.Marshal(outcome.Result)
	if err != nil {
		return fmt.Sprintf("%v", outcome.Result)
	}
	return string(raw)
}
