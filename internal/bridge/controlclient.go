package bridge

import (
	"context"
	"fmt"
	"net"

	"github.com/daemonctl/daemonctl/internal/config"
)

// ControlClient is a CLI process's connection to the daemon's well-known
// control socket, used for command/command_response round trips (list
// sessions, create a session, approve a pending request from the CLI, and
// so on) and for receiving unsolicited daemon pushes such as
// approval_request when the CLI is acting as an interactive approver.
type ControlClient struct {
	idGen    childMessageID
	endpoint *Endpoint
}

// DialControl connects to the daemon's control socket.
func DialControl(paths *config.Paths, handler Handler) (*ControlClient, error) {
	conn, err := net.Dial("unix", paths.ControlSocketPath())
	if err != nil {
		return nil, fmt.Errorf("bridge: dial control socket: %w", err)
	}
	c := &ControlClient{endpoint: NewEndpoint(conn, handler)}
	c.endpoint.Start()
	return c, nil
}

// Call sends a command to the daemon and waits for its command_response.
func (c *ControlClient) Call(ctx context.Context, msg Message) (Message, error) {
	return c.endpoint.Call(ctx, msg, c.idGen.next)
}

// Notify replies to a daemon-initiated push (an approval_request the user
// just answered) without expecting a further response.
func (c *ControlClient) Notify(msg Message) error {
	return c.endpoint.Send(msg)
}

func (c *ControlClient) Close() error { return c.endpoint.Close() }
