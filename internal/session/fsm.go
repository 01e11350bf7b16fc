package session

import (
	"github.com/daemonctl/daemonctl/internal/fsmutil"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// Action names an operation on the session status machine.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionFail     Action = "fail"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionStop     Action = "stop"
	ActionRun      Action = "run"
	ActionRetry    Action = "retry"
)

// fsm is the session status transition table. Unlisted transitions are
// rejected, never silently ignored.
var fsm = fsmutil.Table[types.Status, Action]{
	ActionStart: {
		From: fsmutil.FromSet(types.StatusPending),
		To:   types.StatusRunning,
	},
	ActionComplete: {
		From: fsmutil.FromSet(types.StatusRunning),
		To:   types.StatusSuccess,
	},
	ActionFail: {
		From: fsmutil.FromSet(types.StatusRunning),
		To:   types.StatusError,
	},
	ActionPause: {
		From: fsmutil.FromSet(types.StatusPending, types.StatusRunning),
		To:   types.StatusPaused,
	},
	ActionResume: {
		From: fsmutil.FromSet(types.StatusPaused),
		To:   types.StatusPending,
	},
	ActionStop: {
		From: fsmutil.FromSet(types.StatusPending, types.StatusRunning, types.StatusPaused),
		To:   types.StatusStopped,
	},
	ActionRun: {
		From: fsmutil.FromSet(types.StatusStopped),
		To:   types.StatusRunning,
	},
	ActionRetry: {
		From: fsmutil.FromSet(types.StatusSuccess, types.StatusError),
		To:   types.StatusPending,
	},
}
