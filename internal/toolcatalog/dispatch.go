package toolcatalog

import (
	"context"
	"fmt"
)

// Route is the routing decision for one invocation: where it actually runs.
type Route int

const (
	RouteRejected Route = iota
	RouteHost
	RouteChild
)

// Caller identifies who is invoking a tool, so the humanOnly check can be
// enforced.
type Caller int

const (
	CallerLLM Caller = iota
	CallerHuman
)

// Decide applies the routing table: a humanOnly tool asked by anything but
// a human channel is rejected; a localCommand tool, a call against session
// 0, or a requiresHostExecution tool runs on the host; everything else is
// forwarded to the session's child.
func Decide(def Definition, caller Caller, sessionID int64) Route {
	if def.HumanOnly && caller != CallerHuman {
		return RouteRejected
	}
	if def.LocalCommand || sessionID == 0 || def.RequiresHostExecution {
		return RouteHost
	}
	return RouteChild
}

// Dispatcher runs a Resolved tool according to its Route, forwarding
// child-routed calls through a caller-supplied bridge function.
type Dispatcher struct {
	registry *Registry
	// sendToChild performs the actual host<->child round trip for a
	// child-routed tool call (internal/bridge.HostBridge.SendToContainer,
	// shaped down to just what dispatch needs).
	sendToChild func(ctx context.Context, sessionID int64, toolCallID, name string, args map[string]any) (Outcome, error)
}

// NewDispatcher builds a Dispatcher. sendToChild may be nil in a child
// process, which never forwards further.
func NewDispatcher(registry *Registry, sendToChild func(ctx context.Context, sessionID int64, toolCallID, name string, args map[string]any) (Outcome, error)) *Dispatcher {
	return &Dispatcher{registry: registry, sendToChild: sendToChild}
}

// Invoke resolves name against the registry, applies the routing decision,
// and either runs the tool's Handler locally (host route) or forwards it
// (child route).
func (d *Dispatcher) Invoke(ctx context.Context, caller Caller, inv Invocation, name string) (Outcome, error) {
	def, ok := d.registry.Get(name)
	if !ok {
		return Outcome{}, fmt.Errorf("toolcatalog: unknown tool %q", name)
	}

	switch Decide(def, caller, inv.SessionID) {
	case RouteRejected:
		return Outcome{}, fmt.Errorf("toolcatalog: %q is not available to this caller", name)
	case RouteHost:
		if def.Handler == nil {
			return Outcome{}, fmt.Errorf("toolcatalog: %q has no handler", name)
		}
		return def.Handler(inv), nil
	case RouteChild:
		if d.sendToChild == nil {
			return Outcome{}, fmt.Errorf("toolcatalog: %q requires a child, none available", name)
		}
		return d.sendToChild(ctx, inv.SessionID, inv.ToolCallID, name, inv.Args)
	default:
		return Outcome{}, fmt.Errorf("toolcatalog: unreachable route for %q", name)
	}
}
