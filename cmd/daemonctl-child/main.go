// Command daemonctl-child is the per-session child process the supervisor
// spawns: it dials the host's per-session socket, builds the local tool set
// and agent execution loop, and runs until the session reaches a terminal
// status or a stop signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/daemonctl/daemonctl/internal/agentloop"
	"github.com/daemonctl/daemonctl/internal/approval"
	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/config"
	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/internal/logging"
	"github.com/daemonctl/daemonctl/internal/mcp"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
	"github.com/daemonctl/daemonctl/internal/tools"
	"github.com/daemonctl/daemonctl/pkg/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemonctl-child: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	sessionID, err := sessionIDArg()
	if err != nil {
		return err
	}
	workDir := os.Getenv("DAEMONCTL_WORKSPACE")
	if workDir == "" {
		return fmt.Errorf("DAEMONCTL_WORKSPACE is not set")
	}

	// hostPaths resolves the same installation root the supervisor bound
	// the per-session socket under and reads the same global config.yml;
	// workPaths resolves the workspace ProvisionWorkspace seeded, which is
	// where this process's own session.Manager reads and writes.
	hostPaths := config.NewPaths(os.Getenv("DAEMONCTL_ROOT"))
	workPaths := config.NewPaths(workDir)

	cfg, err := config.Load(hostPaths, "")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Output: os.Stderr})
	defer logging.Close()

	core := corectx.New(cfg, workPaths)
	defer core.Close()

	manager, err := session.NewManager(core)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	allowlist, err := approval.LoadAllowlist(cfg.AllowlistPath)
	if err != nil {
		logging.Logger.Warn().Err(err).Msg("daemonctl-child: load allowlist")
	}

	deps := &tools.Dependencies{
		WorkDir:         workDir,
		Manager:         manager,
		GlobalAllowlist: allowlist,
		Unattended:      cfg.Unattended,
		GoogleAPIKey:    cfg.WebSearch.APIKey,
		GoogleCX:        cfg.WebSearch.CX,
	}
	if cfg.DoomLoopDetection {
		deps.DoomLoop = approval.NewDoomLoopDetector()
	}

	catalog := toolcatalog.NewRegistry()
	tools.Register(catalog, deps)
	connectMCPServers(cfg, catalog)

	loop := agentloop.NewLoop(manager, catalog, sessionID, cfg.TickInterval, 0, cfg.Compaction)

	cb, err := bridge.DialHost(hostPaths, sessionID, loop.HandleUnsolicited)
	if err != nil {
		return fmt.Errorf("dial host: %w", err)
	}
	defer cb.Close()
	deps.Bridge = cb
	loop.SetBridge(cb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-cb.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	return loop.Run(ctx)
}

// connectMCPServers dials every configured, enabled MCP server and folds
// its tools into catalog under the same namespace as the built-ins, so the
// agent loop and the allowlist/approval pipeline never distinguish an MCP
// tool from one of internal/tools' own. A server that fails to connect is
// logged and skipped rather than failing the session.
func connectMCPServers(cfg *types.Config, catalog *toolcatalog.Registry) {
	if len(cfg.MCP) == 0 {
		return
	}
	client := mcp.NewClient()
	for name, serverCfg := range cfg.MCP {
		if !serverCfg.Enabled {
			continue
		}
		if err := client.AddServer(context.Background(), name, mcp.ConfigFromTypes(serverCfg)); err != nil {
			logging.Logger.Warn().Err(err).Str("server", name).Msg("daemonctl-child: connect MCP server")
			continue
		}
	}
	mcp.RegisterTools(catalog, client)
}

func sessionIDArg() (int64, error) {
	if v := os.Getenv("DAEMONCTL_SESSION_ID"); v != "" {
		return strconv.ParseInt(v, 10, 64)
	}
	if len(os.Args) > 1 {
		return strconv.ParseInt(os.Args[len(os.Args)-1], 10, 64)
	}
	return 0, fmt.Errorf("session id not provided via DAEMONCTL_SESSION_ID or argv")
}
