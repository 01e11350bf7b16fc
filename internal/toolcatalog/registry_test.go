package toolcatalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveGluesTokensWithDoubleUnderscore(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "shell__exec__foo", Handler: func(Invocation) Outcome { return Outcome{Status: StatusSuccess} }})

	resolved, err := r.Resolve("shell exec foo bar baz")
	require.NoError(t, err)
	assert.Equal(t, "shell__exec__foo", resolved.Name)
	assert.Equal(t, []string{"bar", "baz"}, resolved.Positional)
}

func TestResolvePrefersAliasOverGluing(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{
		Name: "bash__run",
		Alias: func(argv []string) (string, map[string]any, bool) {
			if len(argv) > 0 && argv[0] == "sh" {
				return "bash__run", map[string]any{"command": argv[1:]}, true
			}
			return "", nil, false
		},
		Handler: func(Invocation) Outcome { return Outcome{Status: StatusSuccess} },
	})

	resolved, err := r.Resolve("sh echo hi")
	require.NoError(t, err)
	assert.Equal(t, "bash__run", resolved.Name)
}

func TestResolveNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("nonexistent command")
	require.Error(t, err)
}

func TestDecideRejectsHumanOnlyFromLLM(t *testing.T) {
	def := Definition{Name: "human__ask", HumanOnly: true}
	assert.Equal(t, RouteRejected, Decide(def, CallerLLM, 5))
	assert.Equal(t, RouteHost, Decide(def, CallerHuman, 5))
}

func TestDecideRoutesLocalCommandToHost(t *testing.T) {
	def := Definition{Name: "daemon__status", LocalCommand: true}
	assert.Equal(t, RouteHost, Decide(def, CallerLLM, 42))
}

func TestDecideRoutesSessionZeroToHost(t *testing.T) {
	def := Definition{Name: "bash__run"}
	assert.Equal(t, RouteHost, Decide(def, CallerLLM, 0))
}

func TestDecideDefaultsToChild(t *testing.T) {
	def := Definition{Name: "bash__run"}
	assert.Equal(t, RouteChild, Decide(def, CallerLLM, 7))
}

func TestDispatcherInvokesHostHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{
		Name:    "bash__run",
		Handler: func(inv Invocation) Outcome { return Outcome{Status: StatusSuccess, Result: "ok"} },
	})
	d := NewDispatcher(r, nil)

	out, err := d.Invoke(context.Background(), CallerLLM, Invocation{SessionID: 0}, "bash__run")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "ok", out.Result)
}

func TestDispatcherForwardsChildRoute(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "bash__run"})

	var forwardedSession int64
	d := NewDispatcher(r, func(ctx context.Context, sessionID int64, toolCallID, name string, args map[string]any) (Outcome, error) {
		forwardedSession = sessionID
		return Outcome{Status: StatusRunning}, nil
	})

	out, err := d.Invoke(context.Background(), CallerLLM, Invocation{SessionID: 9}, "bash__run")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, out.Status)
	assert.Equal(t, int64(9), forwardedSession)
}
