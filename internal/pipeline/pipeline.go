// Package pipeline decides which release stages run and in what order.
package pipeline

import (
	"context"
	"log/slog"

	"macsign/internal/config"
	"macsign/internal/notary"
	"macsign/internal/report"
	"macsign/internal/stage"
	"macsign/pkg/cmdutil"
)

// Stage names a pipeline stage.
type Stage string

// Stages in execution order.
const (
	StageSign     Stage = "sign"
	StagePackage  Stage = "package"
	StageNotarize Stage = "notarize"
	StageStaple   Stage = "staple"
)

// Request holds the stage flags given on the command line.
type Request struct {
	Sign         bool
	Package      bool
	PackageDebug bool
	Notarize     bool
	Staple       bool
}

// RunAll reports whether no stage was requested, meaning every stage runs
// in order until one fails.
func (r Request) RunAll() bool {
	return !r.Sign && !r.Package && !r.PackageDebug && !r.Notarize && !r.Staple
}

// Stages runs the individual stages. *stage.Executor implements it.
type Stages interface {
	Sign(ctx context.Context, s *config.Settings) (*cmdutil.Result, error)
	Package(ctx context.Context, s *config.Settings, debug bool) (*cmdutil.Result, error)
	Notarize(ctx context.Context, s *config.Settings) (*notary.Verdict, error)
	Staple(ctx context.Context, s *config.Settings) (*cmdutil.Result, error)
}

var _ Stages = (*stage.Executor)(nil)

// Summary describes what a run did.
type Summary struct {
	Ran    []Stage
	Failed []Stage
	// Halted is set once a stage fails; later stages then run only when
	// explicitly requested.
	Halted bool
	// Notarization is the notarize verdict, zero when notarize did not run.
	Notarization notary.Outcome
}

// OK reports whether every stage that ran succeeded.
func (s *Summary) OK() bool {
	return len(s.Failed) == 0
}

// Pipeline runs the requested stages.
type Pipeline struct {
	stages   Stages
	logger   *slog.Logger
	reporter *report.Reporter
}

// New creates a pipeline.
func New(stages Stages, logger *slog.Logger, reporter *report.Reporter) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if reporter == nil {
		reporter = report.Discard()
	}
	return &Pipeline{stages: stages, logger: logger, reporter: reporter}
}

// Run executes the stages selected by req against s.
//
// With no flags set every stage runs in order and the first failure skips
// the rest. Explicitly requested stages always run, whatever happened
// before them. Signing runs only when requested or when running all.
// The error is non-nil only when ctx ended.
func (p *Pipeline) Run(ctx context.Context, s *config.Settings, req Request) (*Summary, error) {
	summary := &Summary{}
	err := p.runFrom(ctx, s, req, summary)

	p.logger.Info("pipeline finished",
		"ran", summary.Ran,
		"failed", summary.Failed,
		"halted", summary.Halted,
	)
	return summary, err
}

func (p *Pipeline) runFrom(ctx context.Context, s *config.Settings, req Request, summary *Summary) error {
	runAll := req.RunAll()
	continueAll := func() bool { return runAll && !summary.Halted }

	if req.Sign || runAll {
		p.reporter.Stage("signing")
		result, err := p.stages.Sign(ctx, s)
		if err != nil {
			return err
		}
		p.record(summary, StageSign, p.reporter.ProcessReturn(result))
	}

	if req.Package || req.PackageDebug || continueAll() {
		p.reporter.Stage("packaging")
		result, err := p.stages.Package(ctx, s, req.PackageDebug)
		if err != nil {
			return err
		}
		p.record(summary, StagePackage, p.reporter.ProcessReturn(result))
	}

	if req.Notarize || continueAll() {
		p.reporter.Stage("notarizing")
		verdict, err := p.stages.Notarize(ctx, s)
		if err != nil {
			return err
		}
		p.reporter.ProcessReturn(verdict.Result)
		p.reportVerdict(s, verdict.Outcome)
		summary.Notarization = verdict.Outcome
		p.record(summary, StageNotarize, verdict.Outcome == notary.Success)
	}

	if req.Staple || continueAll() {
		p.reporter.Stage("stapling")
		result, err := p.stages.Staple(ctx, s)
		if err != nil {
			return err
		}
		p.record(summary, StageStaple, p.reporter.ProcessReturn(result))
	}

	return nil
}

func (p *Pipeline) record(summary *Summary, st Stage, ok bool) {
	summary.Ran = append(summary.Ran, st)
	if !ok {
		summary.Failed = append(summary.Failed, st)
		summary.Halted = true
		p.logger.Warn("stage failed", "stage", st)
	}
}

func (p *Pipeline) reportVerdict(s *config.Settings, outcome notary.Outcome) {
	switch outcome {
	case notary.Success:
		p.reporter.Success("notarization process at Apple completed")
		return
	case notary.Rejected:
		p.reporter.Failure("notarization rejected by Apple")
	}

	p.reporter.Println("notarization process did not complete or was inconclusive")
	p.reporter.Println("check manually with: ")
	p.reporter.Println(cmdutil.FormatCommand(stage.HistoryCommand(s)))
}
