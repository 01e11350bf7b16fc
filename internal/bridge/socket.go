package bridge

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// listenUnix binds a Unix domain socket at path, removing any stale socket
// file left behind by a daemon that exited without closing its listener.
func listenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bridge: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen %s: %w", path, err)
	}
	return l, nil
}

// removeStaleSocket deletes path if it exists and nothing is listening on
// it. A live listener refuses a dial with "connection refused", which is
// how we tell a stale socket file from one actually in use.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("bridge: stat %s: %w", path, err)
	}
	if conn, err := net.Dial("unix", path); err == nil {
		conn.Close()
		return fmt.Errorf("bridge: socket %s already has a live listener", path)
	}
	return os.Remove(path)
}
