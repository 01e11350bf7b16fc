package bridge

import (
	"context"
	"fmt"
	"sync"
)

// pendingCalls tracks in-flight request/response pairs keyed by MessageID,
// the way a vsock-backed RPC client tracks outstanding guest requests: a
// caller registers a channel before writing its request, and whichever
// reader goroutine first reads the matching response id delivers it there.
type pendingCalls struct {
	mu      sync.Mutex
	waiters map[string]chan Message
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{waiters: make(map[string]chan Message)}
}

// register creates the response channel for id. Callers must call done(id)
// once they stop waiting, whether they received a response or not.
func (p *pendingCalls) register(id string) chan Message {
	ch := make(chan Message, 1)
	p.mu.Lock()
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *pendingCalls) done(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// deliver hands msg to the waiter registered under msg.MessageID, if any. It
// reports whether a waiter was found.
func (p *pendingCalls) deliver(msg Message) bool {
	p.mu.Lock()
	ch, ok := p.waiters[msg.MessageID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// call registers id, runs send, then waits for either a matching response or
// ctx's deadline. The waiter is always cleaned up before returning.
func (p *pendingCalls) call(ctx context.Context, id string, send func() error) (Message, error) {
	ch := p.register(id)
	defer p.done(id)

	if err := send(); err != nil {
		return Message{}, fmt.Errorf("bridge: send %s: %w", id, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return Message{}, fmt.Errorf("bridge: call %s: %w", id, ctx.Err())
	}
}
