package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/provider"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// completionRetryMax bounds how many times a single ai_prompt_request
// retries CreateCompletion against a flaky provider endpoint before giving
// up and replying with the failure.
const completionRetryMax = 3

func newCompletionBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, completionRetryMax), ctx)
}

// promptRequestWire is the ai_prompt_request payload carried in
// bridge.Message.Data; the provider name travels in the message's own
// Provider field.
type promptRequestWire struct {
	Model        string              `json:"model"`
	SystemPrompt string              `json:"systemPrompt"`
	Messages     []types.Message     `json:"messages"`
	Tools        []provider.ToolInfo `json:"tools,omitempty"`
	MaxTokens    int                 `json:"maxTokens,omitempty"`
}

type promptResponseWire struct {
	Message types.Message `json:"message"`
}

// requestCompletion sends an ai_prompt_request to the host and returns the
// single merged assistant message it replies with. Credentials never
// leave the host: the child only ever sees the finished message.
func requestCompletion(ctx context.Context, cb *bridge.ChildBridge, providerID, modelID, systemPrompt string, messages []types.Message, tools []provider.ToolInfo, maxTokens int) (types.Message, error) {
	resp, err := cb.Call(ctx, bridge.Message{
		Type:     bridge.TypeAIPromptRequest,
		Provider: providerID,
		Data: promptRequestWire{
			Model:        modelID,
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Tools:        tools,
			MaxTokens:    maxTokens,
		},
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("agentloop: ai_prompt_request: %w", err)
	}
	if !resp.Success {
		return types.Message{}, fmt.Errorf("agentloop: provider error: %s", resp.Error)
	}

	var wire promptResponseWire
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return types.Message{}, fmt.Errorf("agentloop: encode ai_prompt_request reply: %w", err)
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.Message{}, fmt.Errorf("agentloop: decode ai_prompt_request reply: %w", err)
	}
	return wire.Message, nil
}

// HandleHostAIPromptRequest runs on the host in response to a child's
// ai_prompt_request: it selects the provider/model by name, drains the
// completion stream, merges it into one assistant message (mergeStream),
// and replies with that message. This is the one place the actual network
// call to an LLM provider happens.
func HandleHostAIPromptRequest(ctx context.Context, registry *provider.Registry, msg bridge.Message) bridge.Message {
	reply := msg
	reply.Type = bridge.TypeCommandResponse

	var req promptRequestWire
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		reply.Success = false
		reply.Error = fmt.Sprintf("agentloop: decode ai_prompt_request: %v", err)
		return reply
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		reply.Success = false
		reply.Error = fmt.Sprintf("agentloop: decode ai_prompt_request: %v", err)
		return reply
	}

	prov, err := registry.Get(msg.Provider)
	if err != nil {
		reply.Success = false
		reply.Error = err.Error()
		return reply
	}

	einoMessages := provider.ConvertToEinoMessages(append(
		[]types.Message{{Role: types.RoleSystem, Content: req.SystemPrompt}},
		req.Messages...,
	))

	var stream *provider.CompletionStream
	retryErr := backoff.Retry(func() error {
		var attemptErr error
		stream, attemptErr = prov.CreateCompletion(ctx, &provider.CompletionRequest{
			Model:     req.Model,
			Messages:  einoMessages,
			Tools:     provider.ConvertToEinoTools(req.Tools),
			MaxTokens: req.MaxTokens,
		})
		return attemptErr
	}, newCompletionBackoff(ctx))
	if retryErr != nil {
		reply.Success = false
		reply.Error = retryErr.Error()
		return reply
	}
	defer stream.Close()

	merged, err := mergeStream(stream)
	if err != nil {
		reply.Success = false
		reply.Error = err.Error()
		return reply
	}

	reply.Success = true
	reply.Data = promptResponseWire{Message: merged}
	return reply
}
