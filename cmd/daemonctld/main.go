// Command daemonctld is the host daemon: it owns the session lifecycle
// manager, the host-container bridge, the provider registry, and every
// session's child process, and serves the CLI's control socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daemonctl/daemonctl/internal/config"
	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/internal/daemon"
	"github.com/daemonctl/daemonctl/internal/logging"
	"github.com/daemonctl/daemonctl/internal/provider"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/webui"
)

var (
	root       = flag.String("root", "", "Installation root (defaults to $XDG_DATA_HOME/daemonctl)")
	projectDir = flag.String("project", "", "Project directory to read a .daemonctl/config.yml override from")
	logLevel   = flag.String("log-level", "", "Overrides config's logLevel")
	pretty     = flag.Bool("pretty", false, "Human-readable console logs instead of JSON")
	webUIPort  = flag.Int("webui-port", 0, "Port for the read-only observation HTTP surface (0 disables it)")
)

func main() {
	flag.Parse()

	paths := config.NewPaths(*root)
	if err := paths.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "daemonctld: create data directories: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(paths, *projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemonctld: load config: %v\n", err)
		os.Exit(1)
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logging.Init(logging.Config{
		Level:  logging.ParseLevel(level),
		Output: os.Stderr,
		Pretty: *pretty,
	})
	defer logging.Close()

	core := corectx.New(cfg, paths)
	defer core.Close()

	manager, err := session.NewManager(core)
	if err != nil {
		logging.Fatal().Err(err).Msg("daemonctld: open session store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		logging.Logger.Warn().Err(err).Msg("daemonctld: some providers failed to initialize")
	}

	d, err := daemon.New(core, manager, providers)
	if err != nil {
		logging.Fatal().Err(err).Msg("daemonctld: build daemon")
	}

	go func() {
		if err := d.Bridge().ServeControl(ctx); err != nil {
			logging.Logger.Error().Err(err).Msg("daemonctld: control socket")
		}
	}()

	if err := d.Supervisor().RecoverAll(ctx); err != nil {
		logging.Logger.Warn().Err(err).Msg("daemonctld: startup recovery scan")
	}

	var ui *webui.Server
	if *webUIPort != 0 {
		uiCfg := webui.DefaultConfig()
		uiCfg.Port = *webUIPort
		ui = webui.New(uiCfg, d.WebUIDependencies())
		go func() {
			if err := ui.Start(); err != nil {
				logging.Logger.Error().Err(err).Msg("daemonctld: webui server")
			}
		}()
	}

	logging.Logger.Info().Str("root", paths.Root).Msg("daemonctld: ready")
	<-ctx.Done()

	logging.Logger.Info().Msg("daemonctld: shutting down")
	if ui != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = ui.Shutdown(shutdownCtx)
		cancel()
	}
	d.Supervisor().Shutdown()
	logging.Logger.Info().Msg("daemonctld: stopped")
}
