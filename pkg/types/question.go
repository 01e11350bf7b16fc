package types

import "strconv"

// QuestionStatus is the lifecycle of a human question request.
type QuestionStatus string

const (
	QuestionPending  QuestionStatus = "pending"
	QuestionAnswered QuestionStatus = "answered"
)

// Question mirrors Approval but for the human__ask tool: a free-form
// answer payload instead of an approve/reject/modify decision.
type Question struct {
	ID          int64          `yaml:"id" json:"id"`
	SessionID   int64          `yaml:"sessionID" json:"sessionID"`
	ToolCallID  string         `yaml:"toolCallID" json:"toolCallID"`
	Description string         `yaml:"description" json:"description"`
	Status      QuestionStatus `yaml:"status" json:"status"`
	Answer      string         `yaml:"answer,omitempty" json:"answer,omitempty"`
	CreatedAt   int64          `yaml:"createdAt" json:"createdAt"`
	ResolvedAt  *int64         `yaml:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// RecordID implements types.Record.
func (q *Question) RecordID() string {
	return strconv.FormatInt(q.ID, 10)
}

// Terminal reports whether the question has been answered.
func (q *Question) Terminal() bool {
	return q.Status == QuestionAnswered
}
