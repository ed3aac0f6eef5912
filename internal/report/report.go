// Package report prints operator-facing progress for a release run.
// Diagnostics go to the structured logger; everything here is meant to be read
// by the person running the tool.
package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"macsign/pkg/cmdutil"
)

// Reporter writes progress lines to an output stream.
type Reporter struct {
	out io.Writer

	success *color.Color
	failure *color.Color
	warn    *color.Color
	heading *color.Color
}

// New creates a Reporter writing to out. Colors are enabled only when out
// is a terminal.
func New(out io.Writer) *Reporter {
	r := &Reporter{
		out:     out,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		heading: color.New(color.Bold),
	}

	enable := false
	if f, ok := out.(*os.File); ok {
		enable = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, c := range []*color.Color{r.success, r.failure, r.warn, r.heading} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return r
}

// Discard returns a Reporter that prints nothing.
func Discard() *Reporter {
	return New(io.Discard)
}

// Println prints a plain line.
func (r *Reporter) Println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

// Printf prints a formatted message.
func (r *Reporter) Printf(format string, a ...any) {
	fmt.Fprintf(r.out, format, a...)
}

// Stage prints the heading of a pipeline stage, e.g. "signing...".
func (r *Reporter) Stage(name string) {
	r.heading.Fprintln(r.out, name+"...")
}

// Success prints msg in green.
func (r *Reporter) Success(msg string) {
	r.success.Fprintln(r.out, msg)
}

// Failure prints msg in red.
func (r *Reporter) Failure(msg string) {
	r.failure.Fprintln(r.out, msg)
}

// Warn prints msg in yellow with a warning prefix.
func (r *Reporter) Warn(msg string) {
	r.warn.Fprintln(r.out, "warning: "+msg)
}

// ProcessReturn prints the captured output of a command followed by a
// success or failed marker, and reports whether the command succeeded.
// A nil result is treated as a failure.
func (r *Reporter) ProcessReturn(res *cmdutil.Result) bool {
	if res != nil {
		if len(res.Stdout) > 0 {
			fmt.Fprintln(r.out, "OUTPUT: ")
			r.lines(res.Stdout)
		}
		if len(res.Stderr) > 0 {
			fmt.Fprintln(r.out, "ERRORS:")
			r.lines(res.Stderr)
		}
	}

	if !res.OK() {
		r.failure.Fprint(r.out, "failed")
		fmt.Fprint(r.out, "\n\n\n")
		return false
	}

	r.success.Fprint(r.out, "success")
	fmt.Fprint(r.out, "\n\n\n")
	return true
}

func (r *Reporter) lines(data []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for scanner.Scan() {
		fmt.Fprintln(r.out, scanner.Text())
	}
}
