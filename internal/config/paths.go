// Package config loads the daemon's configuration and resolves the
// on-disk directory layout the daemon and its children agree on.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths resolves the standard directories for the daemon's data, using
// the usual XDG base-directory resolution.
type Paths struct {
	Root string // installation root all other paths are resolved under
}

// DefaultRoot returns $XDG_DATA_HOME/daemonctl, falling back to
// ~/.local/share/daemonctl (or the Windows APPDATA equivalent).
func DefaultRoot() string {
	return filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "daemonctl")
}

func NewPaths(root string) *Paths {
	if root == "" {
		root = DefaultRoot()
	}
	return &Paths{Root: root}
}

func (p *Paths) TemplatesDir() string  { return filepath.Join(p.Root, "agent", "templates") }
func (p *Paths) SessionsDir() string   { return filepath.Join(p.Root, "db", "sessions") }
func (p *Paths) WorkspacesDir() string { return filepath.Join(p.Root, "db", "workspaces") }
func (p *Paths) WorkspaceDir(sessionID string) string {
	return filepath.Join(p.WorkspacesDir(), sessionID)
}
func (p *Paths) GroupsDir() string    { return filepath.Join(p.Root, "db", "groups") }
func (p *Paths) QuestionsDir() string { return filepath.Join(p.Root, "db", "questions") }
func (p *Paths) ApprovalsDir() string { return filepath.Join(p.Root, "db", "approvals") }
func (p *Paths) ConfigFile() string   { return filepath.Join(p.Root, "config.yml") }
func (p *Paths) EnvFile() string      { return filepath.Join(p.Root, ".env") }

// SocketPath returns the per-session duplex socket path on the host side.
func (p *Paths) SocketPath(sessionID string) string {
	return filepath.Join(p.WorkspaceDir(sessionID), "db", "sockets", sessionID+".sock")
}

// ControlSocketPath returns the well-known CLI<->host control socket path,
// placed under an OS-appropriate runtime directory rather than under the
// installation root so it survives independently of any one session.
func (p *Paths) ControlSocketPath() string {
	return filepath.Join(runtimeDir(), "daemonctl.sock")
}

// EnsureDirs creates every directory this daemon install needs.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{
		p.TemplatesDir(), p.SessionsDir(), p.WorkspacesDir(),
		p.GroupsDir(), p.QuestionsDir(), p.ApprovalsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.MkdirAll(runtimeDir(), 0o755)
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "daemonctl")
	}
	return filepath.Join(os.TempDir(), "daemonctl")
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}
