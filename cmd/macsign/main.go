package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"macsign/internal/config"
	"macsign/internal/notary"
	"macsign/internal/pipeline"
	"macsign/internal/report"
	"macsign/internal/security"
	"macsign/internal/stage"
	"macsign/pkg/cmdutil"
)

// app holds the process-level dependencies of the root command.
type app struct {
	stdout io.Writer
	stderr io.Writer
	runner cmdutil.Runner
	// sleep overrides the wait between notarization status checks.
	sleep func(ctx context.Context, d time.Duration) error
}

type options struct {
	newConfig   bool
	showVersion bool

	sign         bool
	pkg          bool
	packageDebug bool
	notarize     bool
	staple       bool

	pkgVersion string
	verbose    int

	legacyNotarize bool
	notarizeTimer  int
	numChecks      int
}

const usageTemplate = `Usage:
  {{.UseLine}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`

func newRootCmd(a *app) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "macsign [flags] [config]",
		Short: "Code signing and notarization assistant for macOS packages",
		Long: `macsign signs executables, builds a signed installer package from them,
submits the package for notarization and staples the ticket.

With no stage flags every stage runs in order and the first failure stops
the run. Stage flags select stages explicitly; selected stages run even if
an earlier one failed.`,
		Example: `  macsign -N                    write a sample pycodesign.ini
  macsign pycodesign.ini        sign, package, notarize and staple
  macsign -s -p pycodesign.ini  sign and package only
  macsign -O 2.5.0 release.ini  override the package version`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), opts, args)
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.SetUsageTemplate(usageTemplate)

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity (repeat for more)")
	flags.BoolVarP(&opts.showVersion, "version", "V", false, "print the version and exit")
	flags.BoolVarP(&opts.newConfig, "new", "N", false, `create a new sample configuration named "`+config.SampleFileName+`" in the current directory`)
	flags.BoolVarP(&opts.sign, "sign", "s", false, "sign the executables (can be combined with -p, -n, -t)")
	flags.BoolVarP(&opts.pkg, "package", "p", false, "package the executables (can be combined with -s, -n, -t)")
	flags.BoolVarP(&opts.packageDebug, "package_debug", "P", false, "package but leave temporary files in place for debugging")
	flags.BoolVarP(&opts.notarize, "notarize", "n", false, "notarize the package (can be combined with -s, -p, -t)")
	flags.BoolVarP(&opts.staple, "staple", "t", false, "staple the notarization to the package (can be combined with -s, -p, -n)")
	flags.StringVarP(&opts.pkgVersion, "pkg_version", "O", "", "override the version number in the configuration file")
	flags.BoolVarP(&opts.legacyNotarize, "legacy_notarize", "L", false, "notarize with altool and poll for the result (needs apple_id and password)")
	flags.IntVarP(&opts.notarizeTimer, "notarize_timer", "T", int(notary.DefaultBaseInterval/time.Second), "base seconds to wait between legacy notarization status checks")
	flags.IntVarP(&opts.numChecks, "num_checks", "C", notary.DefaultMaxAttempts, "maximum legacy notarization status checks")

	return cmd
}

func (a *app) run(ctx context.Context, opts *options, args []string) error {
	logger := setupLogging(a.stderr, opts.verbose)
	out := report.New(a.stdout)

	if opts.showVersion {
		printVersion(a.stdout)
		return nil
	}

	schema := config.DefaultSchema()
	if opts.legacyNotarize {
		schema = schema.Merge(config.LegacyNotarizationSchema())
	}

	var configPath string
	if len(args) > 0 {
		configPath = args[0]
	}

	if configPath == "" {
		if opts.newConfig {
			return writeSampleConfig(out, config.SampleFileName, schema)
		}
		printGuidance(out)
		return nil
	}
	if opts.newConfig {
		out.Warn("--new ignored because a configuration file was given")
	}

	// Polling flags only matter to legacy notarization.
	if opts.legacyNotarize {
		if opts.numChecks < 1 {
			return &exitError{code: exitConfigInvalid, err: fmt.Errorf("--num_checks must be at least 1, got %d", opts.numChecks)}
		}
		if opts.notarizeTimer < 1 {
			return &exitError{code: exitConfigInvalid, err: fmt.Errorf("--notarize_timer must be at least 1, got %d", opts.notarizeTimer)}
		}
	}

	out.Printf("using configuration file: %s\n", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("could not read configuration", "path", configPath, "error", err)
		var parseErr *config.ParseError
		if errors.As(err, &parseErr) {
			out.Println(parseErr.Error())
		}
		printGuidance(out)
		return nil
	}

	if opts.pkgVersion != "" {
		cfg.Set(config.SectionPackageDetails, config.KeyVersion, opts.pkgVersion)
	}
	logger.Debug("using config", "config", redactedConfig(cfg))

	if missing := config.Validate(cfg, schema); missing.Len() > 0 {
		out.Println("Config file is missing values:")
		out.Printf("%s", missing.String())
		out.Println("exiting")
		return &exitError{code: exitConfigInvalid}
	}

	settings := config.NewSettings(cfg)
	if opts.legacyNotarize {
		if err := security.ValidateSecurePermissions(configPath); err != nil {
			logger.Warn("configuration holds notarization credentials",
				"error", err,
				"suggested_mode", fmt.Sprintf("%04o", security.PermConfigFile),
			)
		}
	}

	runner := &cmdutil.LoggingRunner{
		Runner:  security.NewSandboxedExecutor(a.runner),
		Logger:  logger,
		Secrets: []string{settings.Password},
	}

	executor := stage.NewExecutor(runner, logger, out)
	executor.LegacyNotarization = opts.legacyNotarize
	executor.Polling = notary.Poller{
		MaxAttempts:  opts.numChecks,
		BaseInterval: time.Duration(opts.notarizeTimer) * time.Second,
		Sleep:        a.sleep,
	}

	req := pipeline.Request{
		Sign:         opts.sign,
		Package:      opts.pkg,
		PackageDebug: opts.packageDebug,
		Notarize:     opts.notarize,
		Staple:       opts.staple,
	}

	summary, err := pipeline.New(executor, logger, out).Run(ctx, settings, req)
	return exitFor(summary, err)
}

func printGuidance(out *report.Reporter) {
	out.Println("no configuration file provided")
	out.Println("try:")
	out.Println("$ macsign -h")
}

// redactedConfig copies cfg for logging with the password masked.
func redactedConfig(cfg config.Config) config.Config {
	copied := make(config.Config, len(cfg))
	for section, values := range cfg {
		for key, value := range values {
			if key == config.KeyPassword && value != "" {
				value = "***REDACTED***"
			}
			copied.Set(section, key, value)
		}
	}
	return copied
}

// setupLogging builds the diagnostic logger. Each -v lowers the threshold
// one step from ERROR down to DEBUG.
func setupLogging(w io.Writer, verbose int) *slog.Logger {
	levels := []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo, slog.LevelDebug}
	if verbose >= len(levels) {
		verbose = len(levels) - 1
	}
	if verbose < 0 {
		verbose = 0
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levels[verbose]})
	return slog.New(handler)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		runner: cmdutil.ExecRunner{},
	}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	if err != nil && err.Error() != "" {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}
