package notary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"macsign/internal/report"
	"macsign/pkg/cmdutil"
)

// Outcome is the terminal state of a notarization attempt.
type Outcome int

const (
	// Success means the service accepted the package.
	Success Outcome = iota + 1
	// Rejected means the service returned an explicit "invalid" verdict.
	Rejected
	// Exhausted means polling stopped without a verdict.
	Exhausted
	// Failed means the submission itself failed or could not be tracked.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Verdict is the result of the notarize stage.
type Verdict struct {
	Outcome Outcome
	// Result is the submission command's result.
	Result *cmdutil.Result
}

// Defaults used when a Poller field is left zero.
const (
	DefaultMaxAttempts  = 5
	DefaultBaseInterval = 60 * time.Second
)

// Poller polls the status of a submitted notarization request.
//
// Attempts are numbered from 1. After an inconclusive attempt N the poller
// gives up once N >= MaxAttempts-1, otherwise it sleeps BaseInterval*N and
// polls again. So the default of 5 means at most 4 status checks.
type Poller struct {
	Runner cmdutil.Runner

	// StatusCommand builds the status-check argv for a request id.
	StatusCommand func(handle string) []string

	MaxAttempts  int
	BaseInterval time.Duration

	// Sleep waits for d or until ctx ends. Defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger   *slog.Logger
	Reporter *report.Reporter
}

// SleepContext waits for d, returning early with ctx.Err() if ctx ends.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll extracts the request id from submission output and checks its status
// until the service returns a verdict or the attempts run out.
// The returned error is non-nil only when no request id is found or ctx ends.
func (p *Poller) Poll(ctx context.Context, submission []byte) (Outcome, error) {
	logger := p.logger()
	rep := p.reporter()

	handles := ExtractRequestHandles(submission)
	logger.Debug("request ids found", "ids", handles)
	if len(handles) == 0 {
		return Failed, ErrRequestHandleNotFound
	}
	handle := handles[0]

	maxAttempts := p.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	base := p.BaseInterval
	if base == 0 {
		base = DefaultBaseInterval
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; ; attempt++ {
		rep.Println("checking notarization status")
		rep.Printf("check: %d of %d\n", attempt, maxAttempts)

		status, err := p.check(ctx, handle)
		if err != nil {
			return Exhausted, err
		}
		logger.Debug("notarization status", "attempt", attempt, "status", status)

		if outcome, ok := Classify(status); ok {
			if outcome == Success {
				logger.Debug("successfully notarized", "request", handle)
			} else {
				logger.Debug("notarization rejected", "request", handle)
			}
			return outcome, nil
		}

		rep.Printf("notarization not complete: %v\n", map[string]string(status))
		if attempt >= maxAttempts-1 {
			rep.Failure("notarization failed")
			return Exhausted, nil
		}

		wait := base * time.Duration(attempt)
		rep.Printf("sleeping for %s\n", wait)
		logger.Debug("notarization not complete; sleeping", "duration", wait)
		if err := sleep(ctx, wait); err != nil {
			return Exhausted, fmt.Errorf("waiting for notarization: %w", err)
		}
	}
}

// check runs one status command. A command that fails to start counts as an
// inconclusive poll; only cancellation is returned as an error.
func (p *Poller) check(ctx context.Context, handle string) (Status, error) {
	result, err := p.Runner.Run(ctx, p.StatusCommand(handle))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		p.logger().Warn("status check did not run", "error", err)
		return Status{}, nil
	}
	return ParseStatus(result.Stdout), nil
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

func (p *Poller) reporter() *report.Reporter {
	if p.Reporter == nil {
		return report.Discard()
	}
	return p.Reporter
}
