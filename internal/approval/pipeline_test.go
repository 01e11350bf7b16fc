package approval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

func TestPipelineAllowlistedCommandExecutesImmediately(t *testing.T) {
	p := &Pipeline{
		GlobalAllowlist: Allowlist{"echo": {Approve: true}},
		Execute:         func(cmd string) (any, error) { return "ran: " + cmd, nil },
	}

	out := p.Resume(toolcatalog.Invocation{}, 1, nil, "echo hi")
	require.Equal(t, toolcatalog.StatusSuccess, out.Status)
	assert.Equal(t, "ran: echo hi", out.Result)
}

func TestPipelineUnattendedRejectsUnapproved(t *testing.T) {
	p := &Pipeline{Unattended: true, GlobalAllowlist: Allowlist{}}
	out := p.Resume(toolcatalog.Invocation{}, 1, nil, "rm -rf /")
	assert.Equal(t, toolcatalog.StatusFailure, out.Status)
}

func TestPipelineEmitsApprovalRequestWhenAttended(t *testing.T) {
	var requested bool
	p := &Pipeline{
		GlobalAllowlist: Allowlist{},
		RequestApproval: func(sessionID int64, toolCallID, command string) (int64, error) {
			requested = true
			return 5, nil
		},
	}
	out := p.Resume(toolcatalog.Invocation{ToolCallID: "tc1"}, 1, nil, "rm -rf /")
	require.Equal(t, toolcatalog.StatusRunning, out.Status)
	assert.True(t, requested)
	state, ok := out.State.(State)
	require.True(t, ok)
	assert.Equal(t, PhaseAwaitingApproval, state.Phase)
}

func TestPipelineResumeSpuriousReinvocationStaysRunning(t *testing.T) {
	p := &Pipeline{}
	inv := toolcatalog.Invocation{State: State{Phase: PhaseAwaitingApproval, Command: "rm -rf /"}}
	out := p.Resume(inv, 1, nil, "rm -rf /")
	assert.Equal(t, toolcatalog.StatusRunning, out.Status)
}

func TestPipelineResumeApproveExecutes(t *testing.T) {
	p := &Pipeline{Execute: func(cmd string) (any, error) { return "done", nil }}
	inv := toolcatalog.Invocation{
		State:        State{Phase: PhaseAwaitingApproval, Command: "rm -rf /"},
		ExternalData: map[string]any{"approvalReceived": true, "choice": string(DecisionApprove)},
	}
	out := p.Resume(inv, 1, nil, "rm -rf /")
	require.Equal(t, toolcatalog.StatusSuccess, out.Status)
	assert.Equal(t, "done", out.Result)
}

func TestPipelineResumeRejectFails(t *testing.T) {
	p := &Pipeline{}
	inv := toolcatalog.Invocation{
		State:        State{Phase: PhaseAwaitingApproval, Command: "rm -rf /"},
		ExternalData: map[string]any{"approvalReceived": true, "choice": string(DecisionReject), "comment": "too risky"},
	}
	out := p.Resume(inv, 1, nil, "rm -rf /")
	require.Equal(t, toolcatalog.StatusFailure, out.Status)
	assert.Equal(t, "too risky", out.Error)
}

func TestPipelineResumeModifyIsRejection(t *testing.T) {
	p := &Pipeline{}
	inv := toolcatalog.Invocation{
		State:        State{Phase: PhaseAwaitingApproval, Command: "rm -rf /"},
		ExternalData: map[string]any{"approvalReceived": true, "choice": string(DecisionModify), "comment": "use -i instead"},
	}
	out := p.Resume(inv, 1, nil, "rm -rf /")
	require.Equal(t, toolcatalog.StatusFailure, out.Status)
	assert.Equal(t, "use -i instead", out.Error)
}

func TestPipelineExecuteErrorBecomesFailure(t *testing.T) {
	p := &Pipeline{
		GlobalAllowlist: Allowlist{"echo": {Approve: true}},
		Execute:         func(cmd string) (any, error) { return nil, errors.New("boom") },
	}
	out := p.Resume(toolcatalog.Invocation{}, 1, nil, "echo hi")
	assert.Equal(t, toolcatalog.StatusFailure, out.Status)
	assert.Equal(t, "boom", out.Error)
}

func TestQuestionPipelineFlow(t *testing.T) {
	qp := &QuestionPipeline{
		RequestQuestion: func(sessionID int64, toolCallID, prompt string) (int64, error) { return 1, nil },
	}

	out := qp.Resume(toolcatalog.Invocation{ToolCallID: "tc1"}, 1, "pick a, b, or c")
	require.Equal(t, toolcatalog.StatusRunning, out.Status)
	state := out.State.(QuestionState)

	out = qp.Resume(toolcatalog.Invocation{State: state}, 1, "pick a, b, or c")
	assert.Equal(t, toolcatalog.StatusRunning, out.Status, "no answer yet is a spurious re-invocation")

	out = qp.Resume(toolcatalog.Invocation{State: state, ExternalData: map[string]any{"answer": "b"}}, 1, "pick a, b, or c")
	require.Equal(t, toolcatalog.StatusSuccess, out.Status)
	assert.Equal(t, "b", out.Result)
}
