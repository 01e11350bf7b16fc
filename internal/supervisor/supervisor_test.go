package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/config"
	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/pkg/types"
)

func newTestSupervisor(t *testing.T, command ChildCommand) (*Supervisor, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	core := corectx.New(&types.Config{}, paths)
	manager, err := session.NewManager(core)
	require.NoError(t, err)
	hb := bridge.NewHostBridge(paths, func(context.Context, bridge.Source, bridge.Message) {})
	return New(core, manager, hb, command), paths
}

func TestProvisionWorkspaceSeedsSessionFile(t *testing.T) {
	sv, paths := newTestSupervisor(t, nil)
	sess := &types.Session{ID: 42, Name: "s", Status: types.StatusPending, ChildID: "42_0"}

	require.NoError(t, sv.ProvisionWorkspace(sess))

	workDir := paths.WorkspaceDir("42")
	innerRoot := config.NewPaths(workDir)
	assert.FileExists(t, filepath.Join(innerRoot.SessionsDir(), "42.yml"))
	assert.DirExists(t, filepath.Dir(paths.SocketPath("42")))
}

func TestAliveFalseForUntrackedSession(t *testing.T) {
	sv, _ := newTestSupervisor(t, nil)
	assert.False(t, sv.Alive(999))
}

func TestForceRemoveStaleNoopWhenNothingTracked(t *testing.T) {
	sv, _ := newTestSupervisor(t, nil)
	sv.ForceRemoveStale(999)
}

func TestPauseErrorsWithoutTrackedChild(t *testing.T) {
	sv, _ := newTestSupervisor(t, nil)
	assert.Error(t, sv.Pause(999))
	assert.Error(t, sv.Stop(999))
}

func TestSpawnTimesOutWhenChildNeverDials(t *testing.T) {
	if _, err := os.Stat("/bin/sleep"); err != nil {
		t.Skip("/bin/sleep not available")
	}
	sv, _ := newTestSupervisor(t, ChildCommand{"/bin/sleep", "5"})
	sess := &types.Session{ID: 7, Name: "s", Status: types.StatusRunning, ChildID: "7_0"}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := sv.Spawn(ctx, sess)
	require.Error(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for sv.Alive(7) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.False(t, sv.Alive(7), "context cancellation should have killed the never-dialing child")
}
