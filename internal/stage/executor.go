// Package stage runs the individual release stages: signing, packaging,
// notarization and stapling.
package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"macsign/internal/config"
	"macsign/internal/notary"
	"macsign/internal/report"
	"macsign/internal/security"
	"macsign/pkg/cmdutil"
	"macsign/pkg/fileutil"
)

// Executor runs release stages through a Runner.
//
// Tool failures are returned as results with a non-zero exit code, never as
// errors. A returned error means the context ended.
type Executor struct {
	runner   cmdutil.Runner
	logger   *slog.Logger
	reporter *report.Reporter

	// TempDir is the parent of package staging directories.
	// Empty uses the system default.
	TempDir string

	// LegacyNotarization submits with altool and polls for the verdict
	// instead of letting notarytool wait.
	LegacyNotarization bool

	// Polling tunes the legacy status poller. Runner, StatusCommand, Logger
	// and Reporter are filled in for each run.
	Polling notary.Poller
}

// NewExecutor creates an executor.
func NewExecutor(runner cmdutil.Runner, logger *slog.Logger, reporter *report.Reporter) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if reporter == nil {
		reporter = report.Discard()
	}
	return &Executor{
		runner:   runner,
		logger:   logger,
		reporter: reporter,
	}
}

// Sign code-signs every configured file in one invocation.
func (e *Executor) Sign(ctx context.Context, s *config.Settings) (*cmdutil.Result, error) {
	if entitlements, ok := NormalizeEntitlements(s.Entitlements); ok && !fileutil.FileExists(entitlements) {
		e.logger.Warn("entitlements file not found; passing it to codesign as given", "entitlements", entitlements)
	}

	e.reporter.Printf("signing files: %s\n", strings.Join(s.FileList, " "))
	return e.run(ctx, SignCommand(s))
}

// Package stages the configured files under the installation path and
// builds a signed installer package from them. The staging directory is
// removed afterwards unless debug is set.
func (e *Executor) Package(ctx context.Context, s *config.Settings, debug bool) (*cmdutil.Result, error) {
	if err := security.ValidatePackageName(s.PackageName); err != nil {
		return failedResult(fmt.Errorf("invalid package_name: %w", err)), nil
	}
	if err := security.ValidateBundleID(s.BundleID); err != nil {
		return failedResult(fmt.Errorf("invalid bundle_id: %w", err)), nil
	}

	staging, err := newStagingDir(e.TempDir)
	if err != nil {
		return failedResult(err), nil
	}
	defer func() {
		if debug {
			e.reporter.Println("Package debugging active:")
			e.reporter.Printf("Temp files: %s\n", staging.root)
			return
		}
		if err := staging.Release(); err != nil {
			e.logger.Warn("could not clean up staging directory", "error", err)
		}
	}()

	installPath, err := fileutil.Resolve(s.InstallationPath)
	if err != nil {
		return failedResult(fmt.Errorf("invalid installation_path: %w", err)), nil
	}
	target := staging.Target(installPath)

	e.logger.Debug("staging package",
		"staging_root", staging.root,
		"install_path", installPath,
		"target", target,
	)

	for _, file := range s.FileList {
		src, err := fileutil.Resolve(file)
		if err != nil {
			return failedResult(fmt.Errorf("invalid file %s: %w", file, err)), nil
		}

		result, err := e.run(ctx, CopyCommand(src, filepath.Join(target, filepath.Base(src))))
		if err != nil {
			return result, err
		}
		if !e.reporter.ProcessReturn(result) {
			e.logger.Warn("could not ditto file into temp path", "file", file)
			return result, nil
		}
	}

	e.reporter.Printf("packaging %s\n", s.PackageFile())
	return e.run(ctx, PackageCommand(s, staging.root))
}

// Notarize submits the package and returns the service's verdict.
func (e *Executor) Notarize(ctx context.Context, s *config.Settings) (*notary.Verdict, error) {
	if e.LegacyNotarization {
		return e.notarizeLegacy(ctx, s)
	}

	result, err := e.run(ctx, NotarizeCommand(s))
	if err != nil {
		return &notary.Verdict{Outcome: notary.Failed, Result: result}, err
	}

	status := notary.ParseStatus(result.Stdout)
	if outcome, ok := notary.Classify(status); ok && outcome == notary.Rejected {
		return &notary.Verdict{Outcome: notary.Rejected, Result: result}, nil
	}
	if !result.OK() {
		return &notary.Verdict{Outcome: notary.Failed, Result: result}, nil
	}
	return &notary.Verdict{Outcome: notary.Success, Result: result}, nil
}

func (e *Executor) notarizeLegacy(ctx context.Context, s *config.Settings) (*notary.Verdict, error) {
	result, err := e.run(ctx, LegacySubmitCommand(s))
	if err != nil || !result.OK() {
		return &notary.Verdict{Outcome: notary.Failed, Result: result}, err
	}

	poller := e.Polling
	poller.Runner = e.runner
	poller.StatusCommand = func(handle string) []string {
		return LegacyStatusCommand(s, handle)
	}
	poller.Logger = e.logger
	poller.Reporter = e.reporter

	outcome, err := poller.Poll(ctx, result.Stdout)
	if errors.Is(err, notary.ErrRequestHandleNotFound) {
		e.logger.Error("cannot poll notarization status", "error", err)
		return &notary.Verdict{Outcome: notary.Failed, Result: result}, nil
	}
	return &notary.Verdict{Outcome: outcome, Result: result}, err
}

// Staple attaches the notarization ticket to the package.
func (e *Executor) Staple(ctx context.Context, s *config.Settings) (*cmdutil.Result, error) {
	return e.run(ctx, StapleCommand(s))
}

// run executes cmd. A command that cannot be started becomes a failed
// result carrying the reason on stderr; only cancellation is an error.
func (e *Executor) run(ctx context.Context, cmd []string) (*cmdutil.Result, error) {
	result, err := e.runner.Run(ctx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		return failedResult(err), nil
	}
	return result, nil
}

func failedResult(err error) *cmdutil.Result {
	return &cmdutil.Result{Stderr: []byte(err.Error()), ExitCode: -1}
}
