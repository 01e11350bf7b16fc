package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryGuardBlocksSameLogLength(t *testing.T) {
	g := newRetryGuard()
	assert.False(t, g.blocked(1, 3))

	g.recordFailure(1, 3)
	assert.True(t, g.blocked(1, 3))
}

func TestRetryGuardUnblocksOnceLogGrows(t *testing.T) {
	g := newRetryGuard()
	g.recordFailure(1, 3)
	assert.False(t, g.blocked(1, 4))
}

func TestRetryGuardClear(t *testing.T) {
	g := newRetryGuard()
	g.recordFailure(1, 3)
	g.clear(1)
	assert.False(t, g.blocked(1, 3))
}

func TestRetryGuardIsPerSession(t *testing.T) {
	g := newRetryGuard()
	g.recordFailure(1, 3)
	assert.False(t, g.blocked(2, 3))
}
