// Package tools implements the built-in tool set a child process runs
// locally: shell execution, filesystem read/write/edit/glob/grep/list, web
// fetch and search, and the human__ask question tool. Each is declared as a
// toolcatalog.Definition and registered into a child's Registry by Register.
//
// Grounded throughout on the teacher's internal/tool/*.go implementations,
// adapted from the teacher's Tool/Context/Result interface into
// toolcatalog's Definition/Invocation/Outcome shape.
package tools

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/daemonctl/daemonctl/internal/approval"
	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

// Dependencies collects everything a tool Handler needs that isn't carried
// on the per-call Invocation: the workspace root, the channel back to the
// host for approval/question requests, the child's local session manager
// (for SessionSummary bookkeeping), and the allowlist/doom-loop state the
// shell tool's resumable FSM runs through.
type Dependencies struct {
	// WorkDir is the session's workspace root; every relative path a tool
	// receives is resolved against it.
	WorkDir string

	// Bridge is the child's connection to the host, used to emit
	// approval_request/question_request and block only for the host's ack
	// (an id), never for the human's eventual decision — that arrives later
	// as an unsolicited approval_response/question_response the agent
	// loop's own bridge handler routes into the pending tracker.
	Bridge *bridge.ChildBridge

	// Manager is rooted at this child's own workspace-local session file.
	Manager *session.Manager

	GlobalAllowlist approval.Allowlist
	Unattended      bool
	DoomLoop        *approval.DoomLoopDetector

	HTTPClient   *http.Client
	GoogleAPIKey string
	GoogleCX     string
}

// contextWithTimeout derives a bounded context from inv.Ctx, falling back
// to context.Background when a tool is invoked outside a real tick (e.g.
// directly from a unit test) so web__fetch/web__search never panic on a
// nil context.
func contextWithTimeout(inv toolcatalog.Invocation, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := inv.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

// Register declares every built-in tool against deps and adds it to reg.
func Register(reg *toolcatalog.Registry, deps *Dependencies) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	reg.Register(shellExecuteDefinition(deps))
	reg.Register(fileReadDefinition(deps))
	reg.Register(fileWriteDefinition(deps))
	reg.Register(fileEditDefinition(deps))
	reg.Register(globSearchDefinition(deps))
	reg.Register(grepSearchDefinition(deps))
	reg.Register(directoryListDefinition(deps))
	reg.Register(webFetchDefinition(deps))
	reg.Register(webSearchDefinition(deps))
	reg.Register(humanAskDefinition(deps))
}

// RegisterHostExecuted declares only the tools whose RequiresHostExecution
// flag is set, the subset the daemon itself ever calls Handler for
// directly (everything else a child forwards here is routed, by the same
// Decide table, to the session's child instead). deps needs only WorkDir,
// HTTPClient, GoogleAPIKey, and GoogleCX; its Bridge/Manager/allowlist
// fields go unused by this subset and may be left zero.
func RegisterHostExecuted(reg *toolcatalog.Registry, deps *Dependencies) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	reg.Register(directoryListDefinition(deps))
	reg.Register(webSearchDefinition(deps))
}

// resolvePath joins a possibly-relative path against deps.WorkDir; an
// already-absolute path is returned unchanged.
func resolvePath(deps *Dependencies, path string) string {
	if path == "" {
		return deps.WorkDir
	}
	return joinIfRelative(deps.WorkDir, path)
}

// joinIfRelative joins path onto base unless path is already absolute,
// mirroring the teacher's glob/list path resolution.
func joinIfRelative(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// sessionAllowlist looks up sessionID's shell__execute allowlist entry and
// decodes its per-session override, if any, out of the entry's Options
// under the "allowlist" key, shaped the same as the global allowlist file:
// pattern -> true|false|{approve,matchCommandLine}. Returns nil (no
// override) whenever the session, the entry, or the option is absent or
// malformed, so a lookup failure degrades to "global allowlist only"
// instead of failing the tool call.
func sessionAllowlist(deps *Dependencies, sessionID int64, toolName string) approval.Allowlist {
	sess, err := deps.Manager.Get(sessionID)
	if err != nil {
		return nil
	}
	var raw any
	for _, entry := range sess.ToolAllowlist {
		if entry.Name == toolName {
			raw = entry.Options["allowlist"]
			break
		}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return approval.DecodeAllowlist(m)
}
