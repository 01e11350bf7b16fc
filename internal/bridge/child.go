package bridge

import (
	"context"
	"fmt"
	"net"

	"github.com/daemonctl/daemonctl/internal/config"
)

// ChildBridge is the single connection a child process holds open to the
// host, dialed once at start-up against the host's per-session socket.
type ChildBridge struct {
	sessionID int64
	idGen     childMessageID
	endpoint  *Endpoint
}

// DialHost connects to the host's listener for sessionID. handler receives
// every message the host sends that isn't a response to a Call the child
// itself made: approval_response, question_response, command, and
// command_response to a command the host itself originated.
func DialHost(paths *config.Paths, sessionID int64, handler Handler) (*ChildBridge, error) {
	path := paths.SocketPath(fmt.Sprint(sessionID))
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial host at %s: %w", path, err)
	}
	c := &ChildBridge{sessionID: sessionID, endpoint: NewEndpoint(conn, handler)}
	c.endpoint.Start()
	return c, nil
}

// Call sends msg to the host and blocks for its response: the path a
// tool_call, a question_request, or an ai_prompt_request takes.
func (c *ChildBridge) Call(ctx context.Context, msg Message) (Message, error) {
	msg.SessionID = c.sessionID
	return c.endpoint.Call(ctx, msg, c.idGen.next)
}

// Notify sends msg without waiting for a response: used for replies the
// child sends back to a host-initiated request (approval_response,
// question_response, command_response), which already carry the
// MessageID the host's request used.
func (c *ChildBridge) Notify(msg Message) error {
	msg.SessionID = c.sessionID
	return c.endpoint.Send(msg)
}

func (c *ChildBridge) Done() <-chan struct{} { return c.endpoint.Done() }

func (c *ChildBridge) Close() error { return c.endpoint.Close() }
