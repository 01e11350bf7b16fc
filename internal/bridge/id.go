package bridge

import (
	"fmt"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// childMessageID generates the monotonic id a child uses when it initiates a
// request toward the host (tool_call, question_request, ai_prompt_request).
type childMessageID struct {
	counter int64
}

func (g *childMessageID) next() string {
	return fmt.Sprintf("c%d", atomic.AddInt64(&g.counter, 1))
}

// hostMessageID generates the id the host uses when it initiates a request
// toward a child (approval_request, command): a ULID is time-sortable and
// collision-safe across every session's child process without coordination.
func hostMessageID() string {
	return "msg_" + ulid.Make().String()
}
