package bridge

import (
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultTimeout is the round-trip deadline applied to a Call when the
// caller's context carries no earlier deadline.
const DefaultTimeout = 5 * time.Second

// Handler processes a message the peer sent without it being a response to
// one of our own outstanding calls: a child's tool_call arriving at the
// host, or an approval_request arriving at a CLI client, for example.
type Handler func(Message)

// Endpoint is one end of a duplex, newline-delimited JSON connection. Both
// the host's per-child socket and a child's single socket to the host are
// represented the same way; only who dials and who listens differs.
type Endpoint struct {
	conn    net.Conn
	writer  *frameWriter
	reader  *frameReader
	pending *pendingCalls

	mu      sync.Mutex
	handler Handler

	closeOnce sync.Once
	closed    chan struct{}
}

// NewEndpoint wraps conn. handler receives every inbound message that isn't
// a response to a pending Call; it may be nil until SetHandler is called, in
// which case unsolicited messages are dropped. Call Start once the caller
// has finished wiring itself up, e.g. after it has stored the Endpoint
// somewhere a closure passed as handler needs to find it.
func NewEndpoint(conn net.Conn, handler Handler) *Endpoint {
	return &Endpoint{
		conn:    conn,
		writer:  newFrameWriter(conn),
		reader:  newFrameReader(conn),
		pending: newPendingCalls(),
		handler: handler,
		closed:  make(chan struct{}),
	}
}

// Start begins the read loop. Must be called exactly once.
func (e *Endpoint) Start() {
	go e.readLoop()
}

// SetHandler installs or replaces the unsolicited-message handler.
func (e *Endpoint) SetHandler(h Handler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

func (e *Endpoint) readLoop() {
	defer close(e.closed)
	for {
		msg, err := e.reader.next()
		if err != nil {
			return
		}
		if msg.MessageID != "" && e.pending.deliver(msg) {
			continue
		}
		e.mu.Lock()
		h := e.handler
		e.mu.Unlock()
		if h != nil {
			h(msg)
		}
	}
}

// Send writes msg without waiting for any response.
func (e *Endpoint) Send(msg Message) error {
	return e.writer.write(msg)
}

// Call assigns msg a MessageID via genID if it doesn't already have one,
// sends it, and blocks for the matching response or until ctx (bounded by
// DefaultTimeout if it carries no deadline) expires.
func (e *Endpoint) Call(ctx context.Context, msg Message, genID func() string) (Message, error) {
	if msg.MessageID == "" {
		msg.MessageID = genID()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	return e.pending.call(ctx, msg.MessageID, func() error {
		return e.Send(msg)
	})
}

// Done reports closed when the peer's connection ends.
func (e *Endpoint) Done() <-chan struct{} {
	return e.closed
}

func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.conn.Close()
	})
	return err
}

var _ io.Closer = (*Endpoint)(nil)
