package agentloop

import "sync"

// pendingEntry is one tool call's ToolCallState: the opaque per-tool phase
// state returned by a RUNNING outcome, plus any externalData pushed in
// asynchronously by the host (an approval or question answer) since the
// last invocation.
type pendingEntry struct {
	state        any
	externalData map[string]any
}

// pendingTracker holds ToolCallState for calls currently RUNNING. It is
// process-resident only: nothing here is written to the session record, and
// it does not survive a child restart. That is intentional — a tool whose
// phase state is lost on restart simply runs again from a fresh
// Invocation{State: nil}, which every tool handler must treat as a valid
// starting point.
type pendingTracker struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{entries: make(map[string]*pendingEntry)}
}

// load returns the state to pass into the next Invocation for toolCallID,
// and any externalData queued for it, consuming the externalData so it is
// delivered exactly once.
func (t *pendingTracker) load(toolCallID string) (state any, externalData map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[toolCallID]
	if !ok {
		return nil, nil
	}
	data := e.externalData
	e.externalData = nil
	return e.state, data
}

// record stores outcome.State for a RUNNING outcome, or forgets the entry
// once the call has reached a terminal status.
func (t *pendingTracker) record(toolCallID string, running bool, state any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !running {
		delete(t.entries, toolCallID)
		return
	}
	e, ok := t.entries[toolCallID]
	if !ok {
		e = &pendingEntry{}
		t.entries[toolCallID] = e
	}
	e.state = state
}

// injectExternalData merges data into the pending entry for toolCallID,
// creating it if the call hasn't reported RUNNING yet (the host's answer
// can race the child's own bookkeeping).
func (t *pendingTracker) injectExternalData(toolCallID string, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[toolCallID]
	if !ok {
		e = &pendingEntry{}
		t.entries[toolCallID] = e
	}
	if e.externalData == nil {
		e.externalData = make(map[string]any, len(data))
	}
	for k, v := range data {
		e.externalData[k] = v
	}
}

func (t *pendingTracker) has(toolCallID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[toolCallID]
	return ok
}
