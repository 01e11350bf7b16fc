package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckLiteralPrefixApproves(t *testing.T) {
	list := Allowlist{"git status": {Approve: true}}
	d := Check(list, "git status")
	assert.True(t, d.Approved)
}

func TestCheckBasenameApproves(t *testing.T) {
	list := Allowlist{"ls": {Approve: true}}
	d := Check(list, "/usr/bin/ls -la")
	assert.True(t, d.Approved)
}

func TestCheckRegexPattern(t *testing.T) {
	list := Allowlist{"/^git (status|diff)/": {Approve: true}}
	assert.True(t, Check(list, "git status").Approved)
	assert.False(t, Check(list, "git push").Approved)
}

func TestCheckDenyShortCircuits(t *testing.T) {
	list := Allowlist{
		"rm": {Approve: false},
		"/.*/": {Approve: true, MatchCommandLine: true},
	}
	d := Check(list, "rm -rf /")
	assert.False(t, d.Approved)
	assert.Equal(t, "rm", d.MatchedKey)
}

func TestCheckRequiresEverySubcommandApproved(t *testing.T) {
	list := Allowlist{"echo": {Approve: true}}
	d := Check(list, "echo hi && rm -rf /")
	assert.False(t, d.Approved)
}

func TestCheckMatchCommandLineRule(t *testing.T) {
	list := Allowlist{"echo hi && ls": {Approve: true, MatchCommandLine: true}}
	d := Check(list, "echo hi && ls")
	assert.True(t, d.Approved)
}

func TestSplitSubcommandsHandlesOperators(t *testing.T) {
	subs := SplitSubcommands("echo hi && ls -la; pwd")
	assert.Len(t, subs, 3)
}

func TestDoomLoopDetectsRepeatedIdenticalCalls(t *testing.T) {
	d := NewDoomLoopDetector()
	assert.False(t, d.Check(1, "bash", map[string]any{"cmd": "ls"}))
	assert.False(t, d.Check(1, "bash", map[string]any{"cmd": "ls"}))
	assert.True(t, d.Check(1, "bash", map[string]any{"cmd": "ls"}))
}

func TestDoomLoopResetsOnDifferentCall(t *testing.T) {
	d := NewDoomLoopDetector()
	d.Check(1, "bash", map[string]any{"cmd": "ls"})
	d.Check(1, "bash", map[string]any{"cmd": "ls"})
	assert.False(t, d.Check(1, "bash", map[string]any{"cmd": "pwd"}))
}
