package agentloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

// childDispatch runs one resolved tool call from inside the child process.
// toolcatalog.Decide's routing table is host/child-relative, not
// process-relative: a RouteChild decision means "this runs in the
// session's child", which from here IS this process, so it executes the
// handler directly; a RouteHost decision means the call must cross the
// bridge to the host, which holds credentials, signal, and container
// control this process never has.
//
// ToolCallState (a RUNNING outcome's State, plus any externalData an
// approval or question answer injects) is process-resident here in the
// child's pendingTracker regardless of which route executed the call — the
// host, per its own design, never holds it; a RouteHost call that comes
// back RUNNING is simply re-forwarded on the next tick and must resolve
// itself from whatever the host persisted on its own side (an approval or
// question record), not from anything this process sends it.
func childDispatch(ctx context.Context, catalog *toolcatalog.Registry, cb *bridge.ChildBridge, tracker *pendingTracker, sessionID int64, toolCallID, name string, args map[string]any) (toolcatalog.Outcome, error) {
	def, ok := catalog.Get(name)
	if !ok {
		return toolcatalog.Outcome{}, fmt.Errorf("agentloop: unknown tool %q", name)
	}

	state, externalData := tracker.load(toolCallID)
	inv := toolcatalog.Invocation{
		Ctx:          ctx,
		SessionID:    sessionID,
		ToolCallID:   toolCallID,
		Args:         args,
		State:        state,
		ExternalData: externalData,
	}

	var outcome toolcatalog.Outcome
	var err error

	switch toolcatalog.Decide(def, toolcatalog.CallerLLM, sessionID) {
	case toolcatalog.RouteRejected:
		return toolcatalog.Outcome{}, fmt.Errorf("agentloop: %q is not available to the model", name)
	case toolcatalog.RouteChild:
		if def.Handler == nil {
			return toolcatalog.Outcome{}, fmt.Errorf("agentloop: %q has no handler", name)
		}
		outcome = def.Handler(inv)
	case toolcatalog.RouteHost:
		outcome, err = forwardToolCall(ctx, cb, inv, name)
	default:
		return toolcatalog.Outcome{}, fmt.Errorf("agentloop: unreachable route for %q", name)
	}
	if err != nil {
		return toolcatalog.Outcome{}, err
	}

	tracker.record(toolCallID, outcome.Status == toolcatalog.StatusRunning, outcome.State)
	return outcome, nil
}

// toolCallRequest/toolCallResponse are the wire shapes carried in a
// tool_call bridge.Message's ToolArgs/Data. The host executes a forwarded
// call statelessly: it sees only this invocation's Args and whatever
// externalData arrived with it, never a State field, because ToolCallState
// never leaves the child.
type toolCallRequest struct {
	ExternalData map[string]any `json:"externalData,omitempty"`
}

type toolCallResponse struct {
	Status toolcatalog.Status `json:"status"`
	Result any                `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func forwardToolCall(ctx context.Context, cb *bridge.ChildBridge, inv toolcatalog.Invocation, name string) (toolcatalog.Outcome, error) {
	req := toolCallRequest{ExternalData: inv.ExternalData}

	resp, err := cb.Call(ctx, bridge.Message{
		Type:       bridge.TypeToolCall,
		ToolCallID: inv.ToolCallID,
		ToolName:   name,
		ToolArgs:   inv.Args,
		Data:       req,
	})
	if err != nil {
		return toolcatalog.Outcome{}, fmt.Errorf("agentloop: forward %q to host: %w", name, err)
	}

	var wire toolCallResponse
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return toolcatalog.Outcome{}, fmt.Errorf("agentloop: encode host response for %q: %w", name, err)
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return toolcatalog.Outcome{}, fmt.Errorf("agentloop: decode host response for %q: %w", name, err)
	}

	return toolcatalog.Outcome{Status: wire.Status, Result: wire.Result, Error: wire.Error}, nil
}

// HandleHostToolCall runs a host-routed tool call on behalf of a child; it
// is the counterpart forwardToolCall's requests are aimed at, invoked by
// the host's bridge route callback for messages of TypeToolCall. It never
// receives or returns ToolCallState: a tool whose handler needs to resume
// across calls on the host side must persist its own progress (e.g. an
// approval record) rather than rely on this function remembering anything.
func HandleHostToolCall(dispatcher *toolcatalog.Dispatcher, sessionID int64, msg bridge.Message) bridge.Message {
	var req toolCallRequest
	if raw, err := json.Marshal(msg.Data); err == nil {
		_ = json.Unmarshal(raw, &req)
	}

	inv := toolcatalog.Invocation{
		Ctx:          context.Background(),
		SessionID:    sessionID,
		ToolCallID:   msg.ToolCallID,
		Args:         msg.ToolArgs,
		ExternalData: req.ExternalData,
	}

	outcome, err := dispatcher.Invoke(context.Background(), toolcatalog.CallerLLM, inv, msg.ToolName)
	reply := msg
	reply.Type = bridge.TypeCommandResponse
	if err != nil {
		reply.Data = toolCallResponse{Status: toolcatalog.StatusFailure, Error: err.Error()}
		return reply
	}
	reply.Data = toolCallResponse{Status: outcome.Status, Result: outcome.Result, Error: outcome.Error}
	return reply
}
