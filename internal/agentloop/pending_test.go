package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTrackerRoundTripsRunningState(t *testing.T) {
	tr := newPendingTracker()
	tr.record("call_1", true, map[string]any{"phase": "awaiting_approval"})

	state, external := tr.load("call_1")
	require.NotNil(t, state)
	assert.Equal(t, "awaiting_approval", state.(map[string]any)["phase"])
	assert.Nil(t, external)
}

func TestPendingTrackerForgetsTerminalOutcome(t *testing.T) {
	tr := newPendingTracker()
	tr.record("call_1", true, "some-state")
	tr.record("call_1", false, nil)

	assert.False(t, tr.has("call_1"))
	state, external := tr.load("call_1")
	assert.Nil(t, state)
	assert.Nil(t, external)
}

func TestPendingTrackerInjectExternalDataConsumedOnce(t *testing.T) {
	tr := newPendingTracker()
	tr.record("call_1", true, "waiting")
	tr.injectExternalData("call_1", map[string]any{"approvalReceived": true, "choice": "approve"})

	state, external := tr.load("call_1")
	assert.Equal(t, "waiting", state)
	require.NotNil(t, external)
	assert.Equal(t, true, external["approvalReceived"])

	_, second := tr.load("call_1")
	assert.Nil(t, second)
}

func TestPendingTrackerInjectExternalDataBeforeRunningIsRecorded(t *testing.T) {
	tr := newPendingTracker()
	tr.injectExternalData("call_1", map[string]any{"answered": true})

	assert.True(t, tr.has("call_1"))
	_, external := tr.load("call_1")
	assert.Equal(t, true, external["answered"])
}
