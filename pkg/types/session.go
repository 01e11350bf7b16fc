// Package types holds the wire and on-disk record shapes shared across the
// host daemon, the child process, and CLI clients.
package types

import "strconv"

// Status is a Session's place in the lifecycle FSM (see internal/session).
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusPaused  Status = "PAUSED"
	StatusStopped Status = "STOPPED"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Transition records the most recent FSM transition applied to a session.
type Transition struct {
	Action    string `yaml:"action" json:"action"`
	From      Status `yaml:"from" json:"from"`
	To        Status `yaml:"to" json:"to"`
	Timestamp int64  `yaml:"timestamp" json:"timestamp"`
}

// ToolAllowlistEntry is one entry of a session's tool allowlist: a tool name
// plus an optional per-session option map (e.g. exec_on: host_danger).
type ToolAllowlistEntry struct {
	Name    string         `yaml:"name" json:"name"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// UsageMetrics is the latest approximate token/cost bookkeeping for a
// session. Exact accounting is not attempted.
type UsageMetrics struct {
	InputTokens  int     `yaml:"inputTokens" json:"inputTokens"`
	OutputTokens int     `yaml:"outputTokens" json:"outputTokens"`
	Cost         float64 `yaml:"cost,omitempty" json:"cost,omitempty"`
}

// SessionSummary is non-authoritative bookkeeping about code changes the
// session's tool calls have produced.
type SessionSummary struct {
	Additions int `yaml:"additions" json:"additions"`
	Deletions int `yaml:"deletions" json:"deletions"`
	Files     int `yaml:"files" json:"files"`
}

// Session is the central entity of the system: a live instance of a
// Template, its conversation, and its lifecycle state.
type Session struct {
	ID              int64                `yaml:"id" json:"id"`
	Name            string               `yaml:"name" json:"name"`
	ChildID         string               `yaml:"childID" json:"childID"`
	CreatedAt       int64                `yaml:"createdAt" json:"createdAt"`
	Status          Status               `yaml:"status" json:"status"`
	LastTransition  *Transition          `yaml:"lastTransition,omitempty" json:"lastTransition,omitempty"`
	ToolAllowlist   []ToolAllowlistEntry `yaml:"toolAllowlist,omitempty" json:"toolAllowlist,omitempty"`
	Model           string               `yaml:"model" json:"model"`
	Labels          map[string]string    `yaml:"labels,omitempty" json:"labels,omitempty"`
	DeletedAt       *int64               `yaml:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	Usage           UsageMetrics         `yaml:"usage,omitempty" json:"usage,omitempty"`
	Messages        []Message            `yaml:"messages,omitempty" json:"messages,omitempty"`
	SystemPrompt    string               `yaml:"systemPrompt" json:"systemPrompt"`
	PromptEvaluated bool                 `yaml:"promptEvaluated,omitempty" json:"promptEvaluated,omitempty"`
	Summary         SessionSummary       `yaml:"summary,omitempty" json:"summary,omitempty"`

	// APIVersion/Kind are preserved for the record envelope;
	// Unknown carries forward any keys this binary doesn't recognize so a
	// read-modify-write round trip doesn't drop foreign fields.
	APIVersion string         `yaml:"-" json:"-"`
	Unknown    map[string]any `yaml:"-" json:"-"`
}

// RecordID implements types.Record.
func (s *Session) RecordID() string {
	return strconv.FormatInt(s.ID, 10)
}

// ContainerID is the `<id>_<unix-seconds>` form used for the child's
// container/process name.
func ContainerID(id int64, createdAtUnixSeconds int64) string {
	return strconv.FormatInt(id, 10) + "_" + strconv.FormatInt(createdAtUnixSeconds, 10)
}

// Deleted reports whether the session has been soft-deleted.
func (s *Session) Deleted() bool {
	return s.DeletedAt != nil
}
