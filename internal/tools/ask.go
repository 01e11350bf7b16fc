package tools

import (
	"context"
	"fmt"

	"github.com/daemonctl/daemonctl/internal/approval"
	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

const humanAskHelp = `Asks the human operator a free-form question and waits for an answer.

- question is required
- Pauses the session until the CLI supplies an answer (§4.7's human__ask
  question flow); never offered to the model directly, but the model can
  still emit a tool_call for it the way any other tool call is emitted`

const humanAskParameters = `{
	"type": "object",
	"properties": {
		"question": {"type": "string", "description": "The question to ask the human operator"}
	},
	"required": ["question"]
}`

// humanAskDefinition declares human__ask. Grounded on
// internal/approval.QuestionPipeline for the two-phase resumable FSM; this
// file supplies only the RequestQuestion side effect (emit question_request
// over the bridge and block for the host's ack, never for the human's
// eventual answer).
func humanAskDefinition(deps *Dependencies) toolcatalog.Definition {
	pipeline := &approval.QuestionPipeline{
		RequestQuestion: func(sessionID int64, toolCallID, prompt string) (int64, error) {
			return requestQuestion(deps, sessionID, toolCallID, prompt)
		},
	}

	return toolcatalog.Definition{
		Name:       "human__ask",
		Parameters: []byte(humanAskParameters),
		Help:       humanAskHelp,
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			question, _ := inv.Args["question"].(string)
			if question == "" && inv.State == nil {
				return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: "question is required"}
			}
			return pipeline.Resume(inv, inv.SessionID, question)
		},
	}
}

func requestQuestion(deps *Dependencies, sessionID int64, toolCallID, prompt string) (int64, error) {
	resp, err := deps.Bridge.Call(context.Background(), bridge.Message{
		Type:           bridge.TypeQuestionRequest,
		ToolCallID:     toolCallID,
		QuestionPrompt: prompt,
	})
	if err != nil {
		return 0, fmt.Errorf("human__ask: question request: %w", err)
	}
	return resp.QuestionID, nil
}
