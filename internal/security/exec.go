package security

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"macsign/pkg/cmdutil"
)

// ErrCommandNotAllowed is returned when a command is outside the allowlist.
var ErrCommandNotAllowed = errors.New("command not allowed")

// DefaultAllowedCommands is the set of tools a release run may invoke.
var DefaultAllowedCommands = map[string]bool{
	"codesign":     true,
	"ditto":        true,
	"productbuild": true,
	"xcrun":        true,
}

// DefaultAllowedXcrunTools limits which developer tools xcrun may dispatch to.
var DefaultAllowedXcrunTools = map[string]bool{
	"notarytool": true,
	"stapler":    true,
	"altool":     true,
}

// SandboxedExecutor wraps a Runner and refuses commands outside its allowlist.
type SandboxedExecutor struct {
	// Runner executes commands that pass validation.
	Runner cmdutil.Runner

	// AllowedCommands is the map of commands that are permitted to run.
	AllowedCommands map[string]bool

	// AllowedXcrunTools is the map of tools xcrun may run.
	AllowedXcrunTools map[string]bool
}

// NewSandboxedExecutor creates a sandboxed executor with the default allowlists.
func NewSandboxedExecutor(runner cmdutil.Runner) *SandboxedExecutor {
	return &SandboxedExecutor{
		Runner:            runner,
		AllowedCommands:   DefaultAllowedCommands,
		AllowedXcrunTools: DefaultAllowedXcrunTools,
	}
}

// Run validates cmdParts and hands them to the wrapped Runner.
func (e *SandboxedExecutor) Run(ctx context.Context, cmdParts []string) (*cmdutil.Result, error) {
	if err := e.ValidateCommandParts(cmdParts); err != nil {
		return nil, err
	}
	return e.Runner.Run(ctx, cmdParts)
}

// ValidateCommandParts validates a command before execution.
// Arguments are passed to the process directly, so only NUL bytes are rejected.
func (e *SandboxedExecutor) ValidateCommandParts(cmdParts []string) error {
	if len(cmdParts) == 0 {
		return fmt.Errorf("empty command")
	}

	baseCmd := cmdParts[0]
	if !e.IsCommandAllowed(baseCmd) {
		return fmt.Errorf("%w: %s (must be one of: %s)",
			ErrCommandNotAllowed, baseCmd, strings.Join(allowedList(e.AllowedCommands), ", "))
	}

	if baseCmd == "xcrun" {
		if len(cmdParts) < 2 || !e.AllowedXcrunTools[cmdParts[1]] {
			tool := ""
			if len(cmdParts) > 1 {
				tool = cmdParts[1]
			}
			return fmt.Errorf("%w: xcrun %s (must be one of: %s)",
				ErrCommandNotAllowed, tool, strings.Join(allowedList(e.AllowedXcrunTools), ", "))
		}
	}

	for i, arg := range cmdParts[1:] {
		if strings.ContainsRune(arg, 0) {
			return fmt.Errorf("argument %d contains a NUL byte", i+1)
		}
	}

	return nil
}

// IsCommandAllowed checks if a command is in the allowed list.
func (e *SandboxedExecutor) IsCommandAllowed(cmd string) bool {
	return e.AllowedCommands[cmd]
}

func allowedList(allowed map[string]bool) []string {
	commands := make([]string, 0, len(allowed))
	for cmd, ok := range allowed {
		if ok {
			commands = append(commands, cmd)
		}
	}
	sort.Strings(commands)
	return commands
}
