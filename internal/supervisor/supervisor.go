// Package supervisor owns container/child lifecycle: workspace
// provisioning, spawning the per-session child, start-up recovery, and
// stale-container force-removal. Grounded in the teacher's
// internal/lsp.Client, which tracks a map of running exec.Cmd subprocesses
// keyed by an id and spawned from a configurable command slice — exactly
// the "child spawn, tracked by session id" shape this package needs, only
// generalized from one-process-per-language-server to one-process (or
// container) per session.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/config"
	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/internal/logging"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/store"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// ChildCommand is the exec argv template used to spawn a session's child;
// the session id is appended as the final argument. Overridable so tests
// can point it at a stand-in binary instead of the real cmd/daemonctl-child.
type ChildCommand []string

// DefaultChildCommand runs the real child entrypoint.
var DefaultChildCommand = ChildCommand{"daemonctl-child"}

// Supervisor spawns and tracks one child process per running session. "child
// process" stands in for what the spec calls a container: this package
// models container isolation the way the teacher models a subprocess pool
// (internal/lsp.Client) — a tracked, killable, restartable os/exec child —
// rather than reaching for a container-runtime SDK no example repo in the
// pack uses in production (only as an ephemeral test fixture via
// testcontainers-go, never to spawn a long-lived workload); the actual
// runtime boundary is left to whatever wraps ChildCommand in deployment.
type Supervisor struct {
	core    *corectx.Core
	manager *session.Manager
	hb      *bridge.HostBridge
	command ChildCommand

	mu       sync.Mutex
	children map[int64]*spawnedChild
}

type spawnedChild struct {
	cmd           *exec.Cmd
	containerName string
	exited        chan struct{}
}

// New builds a Supervisor. hb must already be constructed with a route
// callback that dispatches ai_prompt_request/tool_call/etc. to the host
// handlers; Supervisor only manages the process and socket-accept lifecycle
// around it.
func New(core *corectx.Core, manager *session.Manager, hb *bridge.HostBridge, command ChildCommand) *Supervisor {
	if len(command) == 0 {
		command = DefaultChildCommand
	}
	return &Supervisor{
		core:     core,
		manager:  manager,
		hb:       hb,
		command:  command,
		children: make(map[int64]*spawnedChild),
	}
}

// ProvisionWorkspace creates sess's workspace directory and seeds a copy of
// its session record inside it, where the child's own Paths.SessionsDir()
// (rooted at the workspace) finds it. The copy is a separate file from the
// one in the host's collection; nothing is mounted between the two.
func (s *Supervisor) ProvisionWorkspace(sess *types.Session) error {
	paths := s.core.Paths
	workDir := paths.WorkspaceDir(strconv.FormatInt(sess.ID, 10))

	innerRoot := config.NewPaths(workDir)
	for _, dir := range []string{innerRoot.SessionsDir(), filepath.Dir(paths.SocketPath(strconv.FormatInt(sess.ID, 10)))} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("supervisor: provision workspace %d: %w", sess.ID, err)
		}
	}

	seed := store.New[*types.Session](innerRoot.SessionsDir())
	seed.Set(sess.RecordID(), sess)
	if err := seed.Save(); err != nil {
		return fmt.Errorf("supervisor: seed session file for %d: %w", sess.ID, err)
	}
	return nil
}

// Spawn force-removes any stale process still tracked under sess.ID, starts
// a fresh child with its working directory set to the workspace and
// the session id as its final argument, and waits for it to dial the host's
// per-session socket before returning.
func (s *Supervisor) Spawn(ctx context.Context, sess *types.Session) error {
	s.ForceRemoveStale(sess.ID)

	if err := s.ProvisionWorkspace(sess); err != nil {
		return err
	}

	// Bind the per-session socket before starting the child: the child
	// dials it exactly once at start-up with no retry, so the listener must
	// already exist by the time the process starts (per §4.8, "create and
	// listen on the per-session socket, then spawn the child").
	listener, err := s.hb.ListenChild(sess.ID)
	if err != nil {
		return fmt.Errorf("supervisor: listen for session %d: %w", sess.ID, err)
	}

	workDir := s.core.Paths.WorkspaceDir(strconv.FormatInt(sess.ID, 10))
	argv := append(append([]string{}, s.command[1:]...), strconv.FormatInt(sess.ID, 10))
	cmd := exec.CommandContext(ctx, s.command[0], argv...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"DAEMONCTL_ROOT="+s.core.Paths.Root,
		"DAEMONCTL_WORKSPACE="+workDir,
		"DAEMONCTL_SESSION_ID="+strconv.FormatInt(sess.ID, 10),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		listener.Close()
		return fmt.Errorf("supervisor: spawn session %d: %w", sess.ID, err)
	}

	child := &spawnedChild{cmd: cmd, containerName: sess.ChildID, exited: make(chan struct{})}
	s.mu.Lock()
	s.children[sess.ID] = child
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		close(child.exited)
		s.hb.Forget(sess.ID)
		s.mu.Lock()
		if s.children[sess.ID] == child {
			delete(s.children, sess.ID)
		}
		s.mu.Unlock()
		if err != nil {
			logging.Logger.Warn().Err(err).Int64("session", sess.ID).Msg("supervisor: child exited")
		}
	}()

	if _, err := s.hb.AcceptChild(ctx, sess.ID, listener); err != nil {
		return fmt.Errorf("supervisor: accept child %d: %w", sess.ID, err)
	}
	return nil
}

// ForceRemoveStale kills and forgets any process this Supervisor still
// tracks for sessionID, and removes a leftover socket file so a fresh
// ServeChild can bind it. Safe to call when nothing is tracked.
func (s *Supervisor) ForceRemoveStale(sessionID int64) {
	s.mu.Lock()
	child, ok := s.children[sessionID]
	delete(s.children, sessionID)
	s.mu.Unlock()

	if ok && child.cmd.Process != nil {
		_ = child.cmd.Process.Kill()
		<-child.exited
	}
	s.hb.Forget(sessionID)
	_ = os.Remove(s.core.Paths.SocketPath(strconv.FormatInt(sessionID, 10)))
}

// Pause sends SIGUSR1 to sessionID's child, mapped by the child's own
// signal handler onto the pause in-process action.
func (s *Supervisor) Pause(sessionID int64) error {
	return s.signal(sessionID, syscall.SIGUSR1)
}

// Stop sends SIGUSR2 to sessionID's child, mapped onto the stop action.
func (s *Supervisor) Stop(sessionID int64) error {
	return s.signal(sessionID, syscall.SIGUSR2)
}

func (s *Supervisor) signal(sessionID int64, sig syscall.Signal) error {
	s.mu.Lock()
	child, ok := s.children[sessionID]
	s.mu.Unlock()
	if !ok || child.cmd.Process == nil {
		return fmt.Errorf("supervisor: no tracked child for session %d", sessionID)
	}
	return child.cmd.Process.Signal(sig)
}

// Alive reports whether sessionID's child process is still tracked and has
// not exited. Used as Recover's liveness probe.
func (s *Supervisor) Alive(sessionID int64) bool {
	s.mu.Lock()
	child, ok := s.children[sessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-child.exited:
		return false
	default:
		return true
	}
}

// Shutdown stops every tracked child, closing its socket and removing the
// socket file, without waiting for a graceful drain — callers that want a
// graceful stop should Stop() each session first and give it time to reach
// STOPPED before calling Shutdown.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.children))
	for id := range s.children {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.ForceRemoveStale(id)
	}
}

// RecoverAll runs the crash-recovery scan through session.Manager.Recover,
// probing every PENDING/RUNNING/PAUSED session's liveness and respawning
// whichever ones aren't alive. Manager.Recover itself fans candidate
// sessions out across goroutines (golang.org/x/sync/errgroup), so
// independent sessions' probe-then-respawn run concurrently; Supervisor just
// supplies the two callbacks.
func (s *Supervisor) RecoverAll(ctx context.Context) error {
	return s.manager.Recover(
		func(sess *types.Session) bool { return s.Alive(sess.ID) },
		func(sess *types.Session) error { return s.Spawn(ctx, sess) },
	)
}
