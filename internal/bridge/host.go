package bridge

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/daemonctl/daemonctl/internal/config"
)

// HostBridge is the routing waist running inside the daemon. It accepts one
// duplex connection per running child (the session's own socket, daemon as
// server) and any number of transient CLI connections (the well-known
// control socket, also daemon as server), and moves messages between them
// according to Route.
type HostBridge struct {
	paths *config.Paths

	mu       sync.Mutex
	children map[int64]*Endpoint

	// route is invoked for every message a child or a CLI client sends that
	// isn't a response to a call the host itself made. It decides what to do
	// with a tool_call, an approval_response, a question_response, and so
	// on; the bridge itself only carries bytes.
	route func(ctx context.Context, from Source, msg Message)
}

// Source identifies which connection an inbound message arrived on.
type Source struct {
	SessionID int64 // zero when the message came from a CLI control connection
	Endpoint  *Endpoint
}

// NewHostBridge constructs a host bridge. route is called from the read
// loop of whichever connection delivered the message, so it must not block
// for long; hand off to a worker if the handling is slow.
func NewHostBridge(paths *config.Paths, route func(ctx context.Context, from Source, msg Message)) *HostBridge {
	return &HostBridge{
		paths:    paths,
		children: make(map[int64]*Endpoint),
		route:    route,
	}
}

// ServeControl listens on the CLI<->host control socket until ctx is
// canceled. Each accepted connection becomes its own Endpoint whose
// unsolicited messages (command requests from the CLI) are handed to route
// with a zero SessionID.
func (h *HostBridge) ServeControl(ctx context.Context) error {
	l, err := listenUnix(h.paths.ControlSocketPath())
	if err != nil {
		return err
	}
	return h.acceptLoop(ctx, l, 0)
}

// ServeChild listens on sessionID's per-session socket until a child
// connects, or ctx is canceled, then returns the resulting Endpoint. The
// host accepts exactly one connection per session socket: the child that
// dials it.
func (h *HostBridge) ServeChild(ctx context.Context, sessionID int64) (*Endpoint, error) {
	l, err := h.ListenChild(sessionID)
	if err != nil {
		return nil, err
	}
	return h.AcceptChild(ctx, sessionID, l)
}

// ListenChild binds sessionID's per-session socket without accepting a
// connection yet. Split out of ServeChild so a caller that needs to spawn
// the child process only after the socket is guaranteed to be listening
// (the dial-before-accept race a spawn otherwise risks) can call this first
// and AcceptChild afterward.
func (h *HostBridge) ListenChild(sessionID int64) (net.Listener, error) {
	return listenUnix(h.paths.SocketPath(fmt.Sprint(sessionID)))
}

// AcceptChild blocks on l until a child connects or ctx is canceled,
// registering the resulting Endpoint as sessionID's connection.
func (h *HostBridge) AcceptChild(ctx context.Context, sessionID int64, l net.Listener) (*Endpoint, error) {
	defer l.Close()

	type result struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		accepted <- result{conn, err}
	}()

	select {
	case r := <-accepted:
		if r.err != nil {
			return nil, fmt.Errorf("bridge: accept child %d: %w", sessionID, r.err)
		}
		var endpoint *Endpoint
		endpoint = NewEndpoint(r.conn, func(msg Message) {
			h.route(ctx, Source{SessionID: sessionID, Endpoint: endpoint}, msg)
		})
		h.mu.Lock()
		h.children[sessionID] = endpoint
		h.mu.Unlock()
		endpoint.Start()
		return endpoint, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HostBridge) acceptLoop(ctx context.Context, l net.Listener, sessionID int64) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("bridge: accept: %w", err)
			}
		}
		var endpoint *Endpoint
		endpoint = NewEndpoint(conn, func(msg Message) {
			h.route(ctx, Source{SessionID: sessionID, Endpoint: endpoint}, msg)
		})
		endpoint.Start()
	}
}

// SendToContainer sends msg to sessionID's child and blocks for the
// matching reply, whatever msg's type.
func (h *HostBridge) SendToContainer(ctx context.Context, sessionID int64, msg Message) (Message, error) {
	h.mu.Lock()
	child, ok := h.children[sessionID]
	h.mu.Unlock()
	if !ok {
		return Message{}, fmt.Errorf("bridge: no connection to session %d", sessionID)
	}
	return child.Call(ctx, msg, hostMessageID)
}

// NotifyContainer sends msg to sessionID's child without waiting for a
// response. internal/hostcmd uses it to forward a resolved approval or an
// answered question as a fresh approval_response/question_response with no
// MessageID, which the child handles as an unsolicited message.
func (h *HostBridge) NotifyContainer(sessionID int64, msg Message) error {
	h.mu.Lock()
	child, ok := h.children[sessionID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("bridge: no connection to session %d", sessionID)
	}
	return child.Send(msg)
}

// Forget drops the bridge's record of sessionID's connection, once the
// child has exited.
func (h *HostBridge) Forget(sessionID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.children, sessionID)
}
