package types

import "strconv"

// ApprovalStatus is the lifecycle of a human approval request.
type ApprovalStatus string

const (
	ApprovalPending ApprovalStatus = "pending"
	ApprovalApprove ApprovalStatus = "approve"
	ApprovalReject  ApprovalStatus = "reject"
	ApprovalModify  ApprovalStatus = "modify"
)

// Approval is a persisted pending request for human input tied to a tool
// call, created when a shell/PTY write tool can't be auto-approved.
type Approval struct {
	ID          int64          `yaml:"id" json:"id"`
	SessionID   int64          `yaml:"sessionID" json:"sessionID"`
	ToolCallID  string         `yaml:"toolCallID" json:"toolCallID"`
	Type        string         `yaml:"type" json:"type"`
	Description string         `yaml:"description" json:"description"`
	Status      ApprovalStatus `yaml:"status" json:"status"`
	Response    string         `yaml:"response,omitempty" json:"response,omitempty"`
	CreatedAt   int64          `yaml:"createdAt" json:"createdAt"`
	ResolvedAt  *int64         `yaml:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// RecordID implements types.Record.
func (a *Approval) RecordID() string {
	return strconv.FormatInt(a.ID, 10)
}

// Terminal reports whether the approval has reached a final status.
func (a *Approval) Terminal() bool {
	return a.Status != ApprovalPending
}
