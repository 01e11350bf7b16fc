package approval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// Threshold is the number of identical consecutive calls that trips the
// detector.
const Threshold = 3

// historyLimit bounds how much per-session history is retained.
const historyLimit = 10

// DoomLoopDetector flags a session stuck retrying the same failing tool
// call: the same tool name and arguments repeated Threshold times in a row.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[int64][]string
}

// NewDoomLoopDetector returns an empty detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{history: make(map[int64][]string)}
}

// Check records toolName+args for sessionID and reports whether the last
// Threshold calls (including this one) are identical.
func (d *DoomLoopDetector) Check(sessionID int64, toolName string, args any) bool {
	hash := hashCall(toolName, args)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := append(d.history[sessionID], hash)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	d.history[sessionID] = history

	if len(history) < Threshold {
		return false
	}
	start := len(history) - Threshold
	for i := start; i < len(history); i++ {
		if history[i] != hash {
			return false
		}
	}
	return true
}

// Reset clears sessionID's history, e.g. once a different call breaks the
// loop or the session completes.
func (d *DoomLoopDetector) Reset(sessionID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

func hashCall(toolName string, args any) string {
	data, _ := json.Marshal(struct {
		Tool string `json:"tool"`
		Args any    `json:"args"`
	}{toolName, args})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
