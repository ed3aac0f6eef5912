package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"macsign/pkg/cmdutil"
)

func TestProcessReturn(t *testing.T) {
	tests := []struct {
		name   string
		result *cmdutil.Result
		wantOK bool
		want   string
	}{
		{
			name:   "success with output",
			result: &cmdutil.Result{Stdout: []byte("line one\nline two\n"), ExitCode: 0},
			wantOK: true,
			want:   "OUTPUT: \nline one\nline two\nsuccess\n\n\n",
		},
		{
			name:   "failure with both streams",
			result: &cmdutil.Result{Stdout: []byte("partial"), Stderr: []byte("no identity found\n"), ExitCode: 1},
			wantOK: false,
			want:   "OUTPUT: \npartial\nERRORS:\nno identity found\nfailed\n\n\n",
		},
		{
			name:   "silent success",
			result: &cmdutil.Result{ExitCode: 0},
			wantOK: true,
			want:   "success\n\n\n",
		},
		{
			name:   "never started",
			result: &cmdutil.Result{Stderr: []byte("exec: \"codesign\": executable file not found"), ExitCode: -1},
			wantOK: false,
			want:   "ERRORS:\nexec: \"codesign\": executable file not found\nfailed\n\n\n",
		},
		{
			name:   "nil result",
			result: nil,
			wantOK: false,
			want:   "failed\n\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := New(&buf)

			assert.Equal(t, tt.wantOK, r.ProcessReturn(tt.result))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestProcessReturn_LongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	var buf bytes.Buffer

	New(&buf).ProcessReturn(&cmdutil.Result{Stdout: []byte(long)})
	assert.Contains(t, buf.String(), long+"\n")
}

func TestReporter_NoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.Stage("signing")
	r.Success("notarization process at Apple completed")
	r.Failure("notarization failed")
	r.Warn("entitlements file not found")
	r.Printf("check: %d of %d\n", 1, 5)
	r.Println("done")

	assert.Equal(t, "signing...\n"+
		"notarization process at Apple completed\n"+
		"notarization failed\n"+
		"warning: entitlements file not found\n"+
		"check: 1 of 5\n"+
		"done\n", buf.String())
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestDiscard(t *testing.T) {
	r := Discard()
	assert.True(t, r.ProcessReturn(&cmdutil.Result{Stdout: []byte("ignored")}))
}
