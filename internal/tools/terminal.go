package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"time"
)

var ansiRegexp = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07`)

// StripANSI removes terminal escape sequences from command output.
func StripANSI(s string) string {
	return ansiRegexp.ReplaceAllString(s, "")
}

// ExecResult is the outcome of one shell command.
type ExecResult struct {
	Output   string
	ExitCode int
}

// Executor runs shell commands. Implemented by HostExecutor and the docker
// sandbox executor.
type Executor interface {
	Exec(ctx context.Context, command string) (*ExecResult, error)
}

// HostExecutor runs commands directly on the host through sh -c.
type HostExecutor struct {
	Dir     string        // working directory, empty for process cwd
	Timeout time.Duration // per-command deadline
	MaxSize int           // output cap in bytes, 0 for 64KB
}

// Exec runs one command, capturing combined output through a tail buffer so
// runaway commands cannot exhaust memory.
func (h *HostExecutor) Exec(ctx context.Context, command string) (*ExecResult, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = h.Dir

	buf := NewTailBuffer(h.MaxSize)
	cmd.Stdout = buf
	cmd.Stderr = buf

	err := cmd.Run()
	result := &ExecResult{Output: StripANSI(buf.String())}

	if ctx.Err() == context.DeadlineExceeded {
		result.Output += "\n[command timed out]"
		result.ExitCode = -1
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}
	return result, nil
}

// TerminalTool exposes shell execution to the agent.
type TerminalTool struct {
	exec Executor
}

// NewTerminalTool wraps an executor as an agent tool.
func NewTerminalTool(exec Executor) *TerminalTool {
	return &TerminalTool{exec: exec}
}

func (t *TerminalTool) Name() string { return "terminal" }

func (t *TerminalTool) Description() string {
	return "Run a shell command. Parameters: {\"command\": \"ls -la\"}"
}

func (t *TerminalTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	command, err := stringParam(params, "command")
	if err != nil {
		return "", err
	}
	res, err := t.exec.Exec(ctx, command)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		slog.Debug("command exited nonzero", "command", command, "code", res.ExitCode)
		return fmt.Sprintf("%s\n[exit code %d]", res.Output, res.ExitCode), nil
	}
	return res.Output, nil
}
