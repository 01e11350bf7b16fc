// Package session implements the session lifecycle manager: the status
// FSM, id allocation, persistence through the durable collection store,
// and the crash-recovery scan run once the supervisor is ready.
package session

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/internal/store"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// Manager owns the session collection and enforces the status FSM on every
// write. All transitions reload the session from the store first, so a
// concurrent writer (the child appending messages, or the host pausing the
// session) is never silently overwritten.
type Manager struct {
	core    *corectx.Core
	records *store.Collection[*types.Session]

	mu sync.Mutex
}

// NewManager opens the sessions collection under core.Paths.SessionsDir()
// and seeds the id counter from the highest id already on disk.
func NewManager(core *corectx.Core) (*Manager, error) {
	m := &Manager{
		core:    core,
		records: store.New[*types.Session](core.Paths.SessionsDir()),
	}

	ids, err := m.records.List()
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}

	var highest int64
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	core.SeedSessionID(highest)

	return m, nil
}

// Create allocates a new session id, writes a PENDING session record, and
// returns it.
func (m *Manager) Create(name, model string, allowlist []types.ToolAllowlistEntry) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.core.NextSessionID()
	now := time.Now().Unix()
	sess := &types.Session{
		ID:            id,
		Name:          name,
		CreatedAt:     now,
		Status:        types.StatusPending,
		Model:         model,
		ToolAllowlist: allowlist,
	}
	sess.ChildID = types.ContainerID(id, now)

	m.records.Set(sess.RecordID(), sess)
	if err := m.records.Save(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the current session record.
func (m *Manager) Get(id int64) (*types.Session, error) {
	return m.records.Get(strconv.FormatInt(id, 10))
}

// List returns every non-deleted session, unless includeDeleted is true.
func (m *Manager) List(includeDeleted bool) ([]*types.Session, error) {
	all, err := m.records.GetAll()
	if err != nil {
		return nil, err
	}
	sessions := make([]*types.Session, 0, len(all))
	for _, s := range all {
		if !includeDeleted && s.Deleted() {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Transition reloads the session, applies action through the status FSM,
// stamps LastTransition, and saves immediately.
func (m *Manager) Transition(id int64, action Action) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return nil, err
	}

	to, err := fsm.Apply(sess.Status, action)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", id, err)
	}

	from := sess.Status
	sess.Status = to
	sess.LastTransition = &types.Transition{
		Action:    string(action),
		From:      from,
		To:        to,
		Timestamp: time.Now().Unix(),
	}

	m.records.Set(key, sess)
	if err := m.records.Save(); err != nil {
		return nil, err
	}

	m.core.Bus.Publish(corectx.Event{
		Type: corectx.SessionTransitioned,
		Data: sess,
	})
	return sess, nil
}

// SoftDelete tombstones a session without removing its history.
func (m *Manager) SoftDelete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	sess.DeletedAt = &now
	m.records.Set(key, sess)
	return m.records.Save()
}

// AppendMessage reloads the session, appends msg, and saves. This is the
// write path the child's agent loop uses every tick; reloading first keeps
// it safe against a concurrent host-side status change.
func (m *Manager) AppendMessage(id int64, msg types.Message) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return nil, err
	}
	sess.Messages = append(sess.Messages, msg)
	m.records.Set(key, sess)
	if err := m.records.Save(); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetSystemPrompt reloads the session and sets its (not yet evaluated)
// SystemPrompt template text. Called once, right after Create, by whatever
// instantiates a session from a template or an explicit prompt string;
// EvaluateSystemPrompt later renders it in the child's own environment.
func (m *Manager) SetSystemPrompt(id int64, prompt string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return nil, err
	}
	sess.SystemPrompt = prompt
	m.records.Set(key, sess)
	if err := m.records.Save(); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveUsage reloads the session and replaces its usage metrics.
func (m *Manager) SaveUsage(id int64, usage types.UsageMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return err
	}
	sess.Usage = usage
	m.records.Set(key, sess)
	return m.records.Save()
}

// CompactMessages reloads the session and replaces everything but its last
// keep messages with a single synthetic system message carrying summary.
// A no-op if the log isn't longer than keep.
func (m *Manager) CompactMessages(id int64, summary string, keep int) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return nil, err
	}
	if len(sess.Messages) <= keep {
		return sess, nil
	}

	tail := sess.Messages[len(sess.Messages)-keep:]
	replaced := make([]types.Message, 0, keep+1)
	replaced = append(replaced, types.Message{
		Role:      types.RoleSystem,
		Content:   summary,
		Timestamp: time.Now().Unix(),
	})
	replaced = append(replaced, tail...)
	sess.Messages = replaced

	m.records.Set(key, sess)
	if err := m.records.Save(); err != nil {
		return nil, err
	}
	return sess, nil
}

// EvaluateSystemPrompt reloads the session and, if its prompt has not
// already been evaluated, replaces SystemPrompt with rendered and marks
// PromptEvaluated. Called once by the agent loop at startup; idempotent
// against a second call (e.g. after a child restart) since it no-ops once
// the flag is set.
func (m *Manager) EvaluateSystemPrompt(id int64, rendered string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return nil, err
	}
	if sess.PromptEvaluated {
		return sess, nil
	}
	sess.SystemPrompt = rendered
	sess.PromptEvaluated = true
	m.records.Set(key, sess)
	if err := m.records.Save(); err != nil {
		return nil, err
	}
	return sess, nil
}

// AddSummaryDelta reloads the session and accumulates additions/deletions
// line counts and a files-touched count into its non-authoritative
// SessionSummary bookkeeping. Called by write/edit tool handlers after a
// successful change.
func (m *Manager) AddSummaryDelta(id int64, additions, deletions int) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatInt(id, 10)
	sess, err := m.records.Get(key)
	if err != nil {
		return nil, err
	}
	sess.Summary.Additions += additions
	sess.Summary.Deletions += deletions
	sess.Summary.Files++
	m.records.Set(key, sess)
	if err := m.records.Save(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Recover runs the crash-recovery scan: for every session whose status is
// PENDING, RUNNING, or PAUSED, probe reports whether its container/child is
// alive; when it is not, respawn brings up a replacement. Sessions whose
// on-disk status turns out to be STOPPED by the time respawn finishes (a
// stop issued concurrently, while the daemon was down, and only reconciled
// on this scan) are advanced back to RUNNING via the run action, since a
// freshly spawned child expects to find its session not stopped underneath
// it. Sessions already in SUCCESS, ERROR, or STOPPED with no live container
// are left idle.
//
// Candidate sessions are probed and, if needed, respawned concurrently (one
// goroutine per session, via errgroup): each session's own Transition calls
// already take Manager's lock, so there is no shared state for concurrent
// candidates to contend over, and a slow respawn for one session no longer
// holds up the scan for the rest.
func (m *Manager) Recover(probe func(*types.Session) (alive bool), respawn func(*types.Session) error) error {
	sessions, err := m.List(false)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, sess := range sessions {
		switch sess.Status {
		case types.StatusPending, types.StatusRunning, types.StatusPaused:
		default:
			continue
		}

		sess := sess
		g.Go(func() error {
			if probe(sess) {
				return nil
			}
			if err := respawn(sess); err != nil {
				return fmt.Errorf("session %d: respawn: %w", sess.ID, err)
			}

			current, err := m.Get(sess.ID)
			if err != nil {
				return fmt.Errorf("session %d: reload after respawn: %w", sess.ID, err)
			}
			if current.Status == types.StatusStopped {
				if _, err := m.Transition(sess.ID, ActionRun); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
