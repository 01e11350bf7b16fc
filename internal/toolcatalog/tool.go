// Package toolcatalog implements the tool registry and dispatcher: tool
// declaration, command-string resolution (alias resolvers, then the
// `__`-gluing fallback), and the host/child routing decision.
package toolcatalog

import "context"

// Status is the three-way result a tool invocation settles into.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusRunning Status = "RUNNING"
)

// Outcome is what every tool Handler returns.
type Outcome struct {
	Status Status

	// Result carries the SUCCESS payload.
	Result any

	// Error carries the FAILURE reason.
	Error string

	// State carries the opaque continuation for a RUNNING outcome; it is
	// handed back to Handler on the next invocation, alongside whatever
	// ExternalData the caller injects in the meantime (an approval
	// decision, an answered question).
	State any
}

// Invocation is the context one call to a tool's Handler runs in.
type Invocation struct {
	Ctx          context.Context
	SessionID    int64
	ToolCallID   string
	Args         map[string]any
	State        any // nil on first call, the previous Outcome.State on resume
	ExternalData map[string]any
}

// Handler implements one tool's behavior. It is re-invoked with the
// previous Outcome.State whenever it returns StatusRunning, until it
// settles on SUCCESS or FAILURE.
type Handler func(Invocation) Outcome

// Definition is the declared shape of one tool.
type Definition struct {
	// Name is the canonical "plugin__area__action" identifier.
	Name string

	// Parameters is the tool's JSON-schema parameter description, shown to
	// the LLM and used for argv-shaped CLI invocation.
	Parameters []byte

	Help string

	// Alias, if set, is tried against a split argv before falling back to
	// the `__`-gluing resolution order. It returns ok=false when argv
	// doesn't match this tool at all.
	Alias func(argv []string) (name string, args map[string]any, ok bool)

	// RequiresHostExecution tools must run in the host process: they touch
	// credentials, signals, or container control the child never has.
	RequiresHostExecution bool

	// HumanOnly tools are never offered to the LLM; only a human channel
	// (the CLI) may invoke them.
	HumanOnly bool

	// LocalCommand tools always execute on the host, regardless of which
	// session is "current" (their invocation forces sessionId=0).
	LocalCommand bool

	Handler Handler
}
