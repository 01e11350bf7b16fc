package approval

import (
	"fmt"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

// QuestionPhase names where human__ask's resumable FSM sits.
type QuestionPhase string

const (
	QuestionPhaseInitial        QuestionPhase = "initial"
	QuestionPhaseAwaitingAnswer QuestionPhase = "awaiting_answer"
)

// QuestionState is the opaque toolcatalog.Outcome.State human__ask carries
// between ticks.
type QuestionState struct {
	Phase  QuestionPhase `json:"phase"`
	Prompt string        `json:"prompt"`
}

// RequestQuestion emits the question_request side effect and returns the
// request's id.
type RequestQuestion func(sessionID int64, toolCallID, prompt string) (questionID int64, err error)

// QuestionPipeline mirrors Pipeline but for human__ask: there is no
// allowlist stage, every invocation goes straight to asking.
type QuestionPipeline struct {
	RequestQuestion RequestQuestion
}

// Resume implements human__ask's two phases.
func (q *QuestionPipeline) Resume(inv toolcatalog.Invocation, sessionID int64, prompt string) toolcatalog.Outcome {
	if inv.State == nil {
		questionID, err := q.RequestQuestion(sessionID, inv.ToolCallID, prompt)
		if err != nil {
			return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
		}
		_ = questionID
		return toolcatalog.Outcome{
			Status: toolcatalog.StatusRunning,
			State:  QuestionState{Phase: QuestionPhaseAwaitingAnswer, Prompt: prompt},
		}
	}

	state, ok := inv.State.(QuestionState)
	if !ok {
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "approval: invalid question resume state"}
	}
	if state.Phase != QuestionPhaseAwaitingAnswer {
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: fmt.Sprintf("approval: unknown question phase %q", state.Phase)}
	}

	answer, ok := inv.ExternalData["answer"].(string)
	if !ok {
		return toolcatalog.Outcome{Status: toolcatalog.StatusRunning, State: state}
	}
	return toolcatalog.Outcome{Status: toolcatalog.StatusSuccess, Result: answer}
}
