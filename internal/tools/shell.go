package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/daemonctl/daemonctl/internal/approval"
	"github.com/daemonctl/daemonctl/internal/bridge"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
)

const (
	defaultShellTimeout = 120 * time.Second
	maxShellTimeout     = 10 * time.Minute
	maxShellOutput      = 30000
	shellSigkillGrace   = 200 * time.Millisecond
)

const shellExecuteHelp = `Executes a shell command in a fresh subprocess.

- command is required
- timeoutMs is optional (max 600000)
- The command runs through the host's allowlist/approval pipeline before
  it ever executes; an unapproved command blocks until a human approves,
  rejects, or the daemon is running unattended (immediate failure).`

const shellExecuteParameters = `{
	"type": "object",
	"properties": {
		"command": {"type": "string", "description": "The command to execute"},
		"timeoutMs": {"type": "integer", "description": "Optional timeout in milliseconds (max 600000)"}
	},
	"required": ["command"]
}`

// shellExecuteDefinition declares shell__execute: a command line wrapped in
// approval.Pipeline's two-phase FSM, gated first by a doom-loop pre-check.
// Grounded on the teacher's internal/tool/bash.go for the actual process
// execution (shell detection, process-group kill, output truncation) and
// on internal/approval/pipeline.go for the allowlist/approval phases.
func shellExecuteDefinition(deps *Dependencies) toolcatalog.Definition {
	pipeline := &approval.Pipeline{
		Unattended:      deps.Unattended,
		GlobalAllowlist: deps.GlobalAllowlist,
		Execute:         func(command string) (any, error) { return runShellCommand(command, deps.WorkDir, 0) },
		RequestApproval: func(sessionID int64, toolCallID, command string) (int64, error) {
			return requestApproval(deps, sessionID, toolCallID, command)
		},
	}

	return toolcatalog.Definition{
		Name:       "shell__execute",
		Parameters: []byte(shellExecuteParameters),
		Help:       shellExecuteHelp,
		Alias: func(argv []string) (string, map[string]any, bool) {
			if len(argv) == 0 || (argv[0] != "shell" && argv[0] != "sh") {
				return "", nil, false
			}
			return "shell__execute", map[string]any{"command": joinArgs(argv[1:])}, true
		},
		Handler: func(inv toolcatalog.Invocation) toolcatalog.Outcome {
			command, _ := inv.Args["command"].(string)
			timeoutMs, _ := inv.Args["timeoutMs"].(float64)

			if inv.State == nil {
				if deps.DoomLoop != nil && deps.DoomLoop.Check(inv.SessionID, "shell__execute", inv.Args) {
					return requestDoomLoopApproval(deps, inv, command)
				}
			}

			pipeline.Execute = func(cmd string) (any, error) {
				return runShellCommand(cmd, deps.WorkDir, time.Duration(timeoutMs)*time.Millisecond)
			}
			return pipeline.Resume(inv, inv.SessionID, sessionAllowlist(deps, inv.SessionID, "shell__execute"), command)
		},
	}
}

// requestDoomLoopApproval forces a human decision when the same call has
// repeated approval.Threshold times in a row, bypassing the allowlist
// entirely so a runaway retry loop can't silently auto-approve itself out
// of a pattern it's stuck in.
func requestDoomLoopApproval(deps *Dependencies, inv toolcatalog.Invocation, command string) toolcatalog.Outcome {
	label := fmt.Sprintf("[doom-loop detected, repeated %d times] %s", approval.Threshold, command)
	approvalID, err := requestApproval(deps, inv.SessionID, inv.ToolCallID, label)
	if err != nil {
		return toolcatalog.Outcome{Status: toolcatalog.StatusFailure, Error: err.Error()}
	}
	_ = approvalID
	return toolcatalog.Outcome{
		Status: toolcatalog.StatusRunning,
		State:  approval.State{Phase: approval.PhaseAwaitingApproval, Command: command},
	}
}

// requestApproval sends an approval_request to the host and blocks only
// for its ack (the approval record's id); the human's eventual decision
// arrives later as an unsolicited approval_response the agent loop's
// bridge handler routes back in as ExternalData on resume.
func requestApproval(deps *Dependencies, sessionID int64, toolCallID, command string) (int64, error) {
	resp, err := deps.Bridge.Call(context.Background(), bridge.Message{
		Type:       bridge.TypeApprovalRequest,
		ToolCallID: toolCallID,
		Command:    command,
	})
	if err != nil {
		return 0, fmt.Errorf("shell__execute: approval request: %w", err)
	}
	return resp.ApprovalID, nil
}

// runShellCommand runs command in the host-detected shell, in a process
// group so a timeout can kill the whole tree rather than leaking orphans.
func runShellCommand(command, workDir string, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}
	if timeout > maxShellTimeout {
		timeout = maxShellTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shell := detectShell()
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, shell, "/c", command)
	} else {
		cmd = exec.CommandContext(ctx, shell, "-c", command)
	}
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	output, runErr := cmd.CombinedOutput()
	timedOut := ctx.Err() == context.DeadlineExceeded

	result := string(output)
	if len(result) > maxShellOutput {
		result = result[:maxShellOutput] + "\n\n(Output truncated)"
	}
	if timedOut {
		killProcessGroup(cmd)
		result += fmt.Sprintf("\n\n(Command timed out after %v)", timeout)
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if runErr != nil && !timedOut {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			result += fmt.Sprintf("\n\nError: %v", runErr)
		}
	}

	return map[string]any{
		"output": result,
		"exit":   exitCode,
	}, nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil || runtime.GOOS == "windows" {
		return
	}
	pid := cmd.Process.Pid
	syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(shellSigkillGrace)
	if cmd.ProcessState == nil {
		syscall.Kill(-pid, syscall.SIGKILL)
	}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" && s != "/bin/fish" && s != "/usr/bin/fish" {
		return s
	}
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

func joinArgs(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
