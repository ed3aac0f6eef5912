package cmdutil

import (
	"context"
	"log/slog"
)

// LoggingRunner wraps a Runner and logs every command and its result at
// debug level. Secrets are redacted from the logged command line and output.
type LoggingRunner struct {
	Runner  Runner
	Logger  *slog.Logger
	Secrets []string
}

// Run implements Runner.
func (r *LoggingRunner) Run(ctx context.Context, cmdParts []string) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmdline := string(SanitizeOutput([]byte(FormatCommand(cmdParts)), r.Secrets))
	logger.Debug("running command", "command", cmdline)

	result, err := r.Runner.Run(ctx, cmdParts)
	if err != nil {
		logger.Debug("command did not complete", "command", cmdline, "error", err)
		return result, err
	}

	logger.Debug("command finished",
		"command", cmdline,
		"return_code", result.ExitCode,
		"duration", result.Duration,
		"stdout", string(SanitizeOutput(result.Stdout, r.Secrets)),
		"stderr", string(SanitizeOutput(result.Stderr, r.Secrets)),
	)
	return result, nil
}
