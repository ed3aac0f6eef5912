package main

import (
	"context"
	"errors"

	"macsign/internal/notary"
	"macsign/internal/pipeline"
)

// Process exit codes.
const (
	exitOK            = 0
	exitStageFailed   = 1
	exitConfigInvalid = 2
	exitRejected      = 3
	exitInconclusive  = 4
	exitInterrupted   = 130
)

// exitError carries a process exit code out of the root command.
// A nil err means the failure was already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitFor maps a pipeline run to an exit error, or nil on success.
func exitFor(summary *pipeline.Summary, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &exitError{code: exitInterrupted, err: err}
		}
		return &exitError{code: exitStageFailed, err: err}
	}
	if summary == nil {
		return nil
	}

	switch summary.Notarization {
	case notary.Rejected:
		return &exitError{code: exitRejected}
	case notary.Exhausted, notary.Failed:
		return &exitError{code: exitInconclusive}
	}

	if !summary.OK() {
		return &exitError{code: exitStageFailed}
	}
	return nil
}

// exitCode returns the process exit code for an error returned by the root
// command. Errors that are not exit errors come from argument parsing.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitConfigInvalid
}
