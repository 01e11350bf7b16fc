package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

func TestHumanAskRequiresQuestionOnFirstCall(t *testing.T) {
	deps := &Dependencies{}
	def := humanAskDefinition(deps)
	out := def.Handler(toolcatalog.Invocation{Args: map[string]any{}})
	assert.Equal(t, toolcatalog.StatusFailure, out.Status)
	assert.Equal(t, "question is required", out.Error)
}
