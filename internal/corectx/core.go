// Package corectx holds the process-wide state a running daemon or child
// needs, collected onto one explicit struct instead of package-level
// globals. Every subsystem that needs the config, the event bus, or an id
// counter receives a *Core rather than reaching for a singleton.
package corectx

import (
	"sync/atomic"

	"github.com/daemonctl/daemonctl/internal/config"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// idCounter is a monotonic, directory-scan-seeded id allocator: every
// entity in this system that needs a small dense integer id (sessions,
// approvals, questions) is numbered the same way, max(existing ids) seeded
// once at start-up, then incremented under atomic CAS.
type idCounter struct{ n int64 }

func (c *idCounter) seed(highest int64) {
	for {
		current := atomic.LoadInt64(&c.n)
		if highest <= current {
			return
		}
		if atomic.CompareAndSwapInt64(&c.n, current, highest) {
			return
		}
	}
}

func (c *idCounter) next() int64 {
	return atomic.AddInt64(&c.n, 1)
}

// Core is constructed once at daemon (or child) start-up and threaded
// through every component that needs process-wide state.
type Core struct {
	Config *types.Config
	Paths  *config.Paths
	Bus    *Bus

	sessionID  idCounter
	approvalID idCounter
	questionID idCounter
}

// New builds a Core from an already-loaded config and resolved paths.
func New(cfg *types.Config, paths *config.Paths) *Core {
	return &Core{
		Config: cfg,
		Paths:  paths,
		Bus:    NewBus(),
	}
}

// SeedSessionID tells the Core the highest session id it has observed on
// disk, so NextSessionID continues the sequence instead of restarting it.
func (c *Core) SeedSessionID(highest int64) { c.sessionID.seed(highest) }

// NextSessionID allocates the next monotonic session id.
func (c *Core) NextSessionID() int64 { return c.sessionID.next() }

// SeedApprovalID/NextApprovalID mirror the session id counter for the
// Approval collection, scanned once by the daemon at start-up.
func (c *Core) SeedApprovalID(highest int64) { c.approvalID.seed(highest) }
func (c *Core) NextApprovalID() int64        { return c.approvalID.next() }

// SeedQuestionID/NextQuestionID mirror the session id counter for the
// Question collection.
func (c *Core) SeedQuestionID(highest int64) { c.questionID.seed(highest) }
func (c *Core) NextQuestionID() int64        { return c.questionID.next() }

// Close releases process-wide resources (currently just the event bus).
func (c *Core) Close() error {
	return c.Bus.Close()
}
