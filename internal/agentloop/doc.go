// Package agentloop implements the per-session agent execution loop that
// runs inside a session's child process: the startup sequence, the
// ~2-second tick that drives one round of "read the log, maybe call the
// model, maybe run tools, write the log back", the cross-tick retry guard,
// and SIGUSR1/SIGUSR2 cancellation.
//
// The loop treats the session record as shared filesystem state rather
// than something only reachable through the bridge: the supervisor mounts
// the session's own record file into the child's workspace alongside its
// socket, so the child opens the exact same store.Collection machinery the
// host's session.Manager uses, just rooted at the child's local view of
// that one file. Reads and writes are therefore ordinary reload-then-save
// calls; only "hot" actions that must happen on the host (tool calls
// needing host execution, approvals, the provider call itself) go over the
// bridge.
package agentloop
