package approval

import (
	"fmt"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

// Phase names where a shell/PTY write tool's resumable FSM currently sits.
type Phase string

const (
	PhaseInitial          Phase = "initial"
	PhaseAwaitingApproval Phase = "awaiting_approval"
)

// State is the opaque toolcatalog.Outcome.State a RUNNING shell/PTY tool
// carries between ticks.
type State struct {
	Phase   Phase  `json:"phase"`
	Command string `json:"command"`
}

// Decision is what a human approver chose.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionModify  Decision = "modify"
)

// Execute runs the underlying command once an allowlist check (or a human
// approval) has cleared it. Supplied by the caller so this package stays
// agnostic of how a shell/PTY tool actually runs a command.
type Execute func(command string) (result any, err error)

// RequestApproval emits the approval_request side effect (an
// ApprovalCreated event, a persisted types.Approval record) and returns the
// request's id, used to correlate the later resume call.
type RequestApproval func(sessionID int64, toolCallID, command string) (approvalID int64, err error)

// Pipeline wraps a shell/PTY write tool's raw execution in the two-phase
// resumable FSM: allowlist check first, human approval only when the
// allowlist doesn't settle it.
type Pipeline struct {
	Unattended      bool
	GlobalAllowlist Allowlist
	Execute         Execute
	RequestApproval RequestApproval
}

// Resume implements the phase initial -> awaiting_approval -> terminal
// state machine as a toolcatalog.Handler body. sessionAllowlist is the
// per-session allowlist; it is merged over the global one (a session rule
// replaces a global rule with the same pattern) and the result is checked
// as one allowlist.
func (p *Pipeline) Resume(inv toolcatalog.Invocation, sessionID int64, sessionAllowlist Allowlist, command string) toolcatalog.Outcome {
	if inv.State == nil {
		return p.runInitial(inv, sessionID, sessionAllowlist, command)
	}

	state, ok := inv.State.(State)
	if !ok {
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "approval: invalid resume state"}
	}

	switch state.Phase {
	case PhaseAwaitingApproval:
		return p.runAwaitingApproval(inv, state)
	default:
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("approval: unknown phase %q", state.Phase)}
	}
}

func (p *Pipeline) runInitial(inv toolcatalog.Invocation, sessionID int64, sessionAllowlist Allowlist, command string) toolcatalog.Outcome {
	effective := p.GlobalAllowlist
	if sessionAllowlist != nil {
		effective = merge(p.GlobalAllowlist, sessionAllowlist)
	}

	decision := Check(effective, command)
	if decision.Approved {
		result, err := p.Execute(command)
		if err != nil {
			return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
		}
		return toolcatalog.Outcome{Status: toolcatalog.StatusSuccess, Result: result}
	}

	if p.Unattended {
		reason := "no matching approve rule"
		if decision.MatchedKey != "" {
			reason = fmt.Sprintf("denied by rule %q", decision.MatchedKey)
		}
		msg := "command rejected by allowlist (" + reason + ")"
		if len(sessionAllowlist) > 0 {
			msg += "; session allowlist grants: " + approvedKeys(sessionAllowlist)
		}
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: msg}
	}

	approvalID, err := p.RequestApproval(sessionID, inv.ToolCallID, command)
	if err != nil {
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
	}
	_ = approvalID
	return toolcatalog.Outcome{
		Status: toolcatalog.StatusRunning,
		State:  State{Phase: PhaseAwaitingApproval, Command: command},
	}
}

func (p *Pipeline) runAwaitingApproval(inv toolcatalog.Invocation, state State) toolcatalog.Outcome {
	received, ok := inv.ExternalData["approvalReceived"]
	if !ok || received != true {
		return toolcatalog.Outcome{Status: toolcatalog.StatusRunning, State: state}
	}

	choiceRaw, _ := inv.ExternalData["choice"].(string)
	choice := Decision(choiceRaw)

	if choice == DecisionApprove {
		result, err := p.Execute(state.Command)
		if err != nil {
			return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
		}
		return toolcatalog.Outcome{Status: toolcatalog.StatusSuccess, Result: result}
	}

	// REJECT and MODIFY both end in rejection; MODIFY never rewrites the
	// command, it carries the human's explanation as guidance instead.
	explanation, _ := inv.ExternalData["comment"].(string)
	if explanation == "" {
		explanation = "rejected by approver"
	}
	return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: explanation}
}

func merge(global, session Allowlist) Allowlist {
	merged := make(Allowlist, len(global)+len(session))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range session {
		merged[k] = v
	}
	return merged
}

func approvedKeys(list Allowlist) string {
	var s string
	for k, v := range list {
		if v.Approve {
			if s != "" {
				s += ", "
			}
			s += k
		}
	}
	return s
}
