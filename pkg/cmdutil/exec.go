package cmdutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Result contains the result of a command execution.
type Result struct {
	// Stdout is the standard output.
	Stdout []byte

	// Stderr is the standard error.
	Stderr []byte

	// ExitCode is the exit code of the command. -1 means the process
	// never produced an exit status (it could not be started or was killed).
	ExitCode int

	// Duration is how long the command took to execute.
	Duration time.Duration
}

// OK reports whether the command exited with status zero.
func (r *Result) OK() bool {
	return r != nil && r.ExitCode == 0
}

// Runner executes an argv and returns its result.
type Runner interface {
	Run(ctx context.Context, cmdParts []string) (*Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmdParts []string) (*Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmdParts []string) (*Result, error) {
	return f(ctx, cmdParts)
}

// ExecRunner runs commands as real OS processes in the current directory.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmdParts []string) (*Result, error) {
	return Run(ctx, cmdParts)
}

// Run executes a command.
// The command is provided as a slice of arguments (program and its arguments)
// and is never passed through a shell.
//
// A non-zero exit status is not an error: it is reported in Result.ExitCode.
// An error is returned only when the command is empty, cannot be started,
// or the context ends before it exits. Stdout and stderr are drained
// concurrently while the process runs.
func Run(ctx context.Context, cmdParts []string) (*Result, error) {
	if len(cmdParts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, cmdParts[0], cmdParts[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("command interrupted: %w", ctxErr)
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return result, fmt.Errorf("command failed to start: %w", err)
	}

	return result, nil
}

// FormatCommand formats command parts into a readable string for logging.
// Example: ["git", "commit", "-m", "my message"] -> "git commit -m 'my message'"
func FormatCommand(cmdParts []string) string {
	if len(cmdParts) == 0 {
		return "<empty command>"
	}

	// Quote arguments that contain spaces or special characters
	quoted := make([]string, len(cmdParts))
	for i, part := range cmdParts {
		if part == "" || strings.ContainsAny(part, " \t\n\"'") {
			quoted[i] = shellquote.Join(part)
		} else {
			quoted[i] = part
		}
	}

	return strings.Join(quoted, " ")
}

// SanitizeOutput removes sensitive information from command output.
// This is useful for logging command output without exposing secrets.
func SanitizeOutput(output []byte, secrets []string) []byte {
	sanitized := string(output)
	for _, secret := range secrets {
		if secret != "" {
			sanitized = strings.ReplaceAll(sanitized, secret, "***REDACTED***")
		}
	}
	return []byte(sanitized)
}
