package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macsign/internal/config"
	"macsign/internal/notary"
	"macsign/internal/report"
	"macsign/internal/stage"
	"macsign/pkg/cmdutil"
)

// fakeStages records calls and returns configured results.
type fakeStages struct {
	calls []string

	sign, pkg, staple *cmdutil.Result
	verdict           notary.Outcome
	packageDebug      bool
	err               error
}

func ok() *cmdutil.Result   { return &cmdutil.Result{ExitCode: 0} }
func fail() *cmdutil.Result { return &cmdutil.Result{Stderr: []byte("boom"), ExitCode: 1} }

func newFakeStages() *fakeStages {
	return &fakeStages{sign: ok(), pkg: ok(), staple: ok(), verdict: notary.Success}
}

func (f *fakeStages) Sign(ctx context.Context, s *config.Settings) (*cmdutil.Result, error) {
	f.calls = append(f.calls, "sign")
	return f.sign, f.err
}

func (f *fakeStages) Package(ctx context.Context, s *config.Settings, debug bool) (*cmdutil.Result, error) {
	f.calls = append(f.calls, "package")
	f.packageDebug = debug
	return f.pkg, nil
}

func (f *fakeStages) Notarize(ctx context.Context, s *config.Settings) (*notary.Verdict, error) {
	f.calls = append(f.calls, "notarize")
	result := ok()
	if f.verdict != notary.Success {
		result = fail()
	}
	return &notary.Verdict{Outcome: f.verdict, Result: result}, nil
}

func (f *fakeStages) Staple(ctx context.Context, s *config.Settings) (*cmdutil.Result, error) {
	f.calls = append(f.calls, "staple")
	return f.staple, nil
}

func settings() *config.Settings {
	return &config.Settings{KeychainProfile: "notary-profile", PackageName: "MyTool"}
}

func TestRequestRunAll(t *testing.T) {
	assert.True(t, Request{}.RunAll())
	assert.False(t, Request{Sign: true}.RunAll())
	assert.False(t, Request{Package: true}.RunAll())
	assert.False(t, Request{PackageDebug: true}.RunAll())
	assert.False(t, Request{Notarize: true}.RunAll())
	assert.False(t, Request{Staple: true}.RunAll())
}

func TestRun_StageSelection(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		setup func(*fakeStages)
		want  []string
	}{
		{"run all", Request{}, nil, []string{"sign", "package", "notarize", "staple"}},
		{"sign only", Request{Sign: true}, nil, []string{"sign"}},
		{"package only", Request{Package: true}, nil, []string{"package"}},
		{"package debug only", Request{PackageDebug: true}, nil, []string{"package"}},
		{"notarize only", Request{Notarize: true}, nil, []string{"notarize"}},
		{"staple only", Request{Staple: true}, nil, []string{"staple"}},
		{"fixed order", Request{Staple: true, Sign: true, Notarize: true}, nil, []string{"sign", "notarize", "staple"}},
		{
			"run all stops after sign failure",
			Request{},
			func(f *fakeStages) { f.sign = fail() },
			[]string{"sign"},
		},
		{
			"run all stops after package failure",
			Request{},
			func(f *fakeStages) { f.pkg = fail() },
			[]string{"sign", "package"},
		},
		{
			"run all stops after rejection",
			Request{},
			func(f *fakeStages) { f.verdict = notary.Rejected },
			[]string{"sign", "package", "notarize"},
		},
		{
			"run all stops after exhaustion",
			Request{},
			func(f *fakeStages) { f.verdict = notary.Exhausted },
			[]string{"sign", "package", "notarize"},
		},
		{
			"requested stages run after failure",
			Request{Sign: true, Package: true, Notarize: true, Staple: true},
			func(f *fakeStages) { f.sign = fail(); f.verdict = notary.Failed },
			[]string{"sign", "package", "notarize", "staple"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages := newFakeStages()
			if tt.setup != nil {
				tt.setup(stages)
			}

			_, err := New(stages, nil, report.Discard()).Run(context.Background(), settings(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stages.calls)
		})
	}
}

func TestRun_PackageDebugFlag(t *testing.T) {
	stages := newFakeStages()
	_, err := New(stages, nil, nil).Run(context.Background(), settings(), Request{PackageDebug: true})
	require.NoError(t, err)
	assert.True(t, stages.packageDebug)

	stages = newFakeStages()
	_, err = New(stages, nil, nil).Run(context.Background(), settings(), Request{})
	require.NoError(t, err)
	assert.False(t, stages.packageDebug)
}

func TestRunFrom_ExplicitStageIgnoresPriorHalt(t *testing.T) {
	stages := newFakeStages()
	summary := &Summary{Halted: true}

	err := New(stages, nil, nil).runFrom(context.Background(), settings(), Request{Staple: true}, summary)
	require.NoError(t, err)
	assert.Equal(t, []string{"staple"}, stages.calls)
	assert.Equal(t, []Stage{StageStaple}, summary.Ran)
}

func TestRun_Summary(t *testing.T) {
	stages := newFakeStages()
	stages.verdict = notary.Rejected

	summary, err := New(stages, nil, nil).Run(context.Background(), settings(), Request{})
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageSign, StagePackage, StageNotarize}, summary.Ran)
	assert.Equal(t, []Stage{StageNotarize}, summary.Failed)
	assert.True(t, summary.Halted)
	assert.False(t, summary.OK())
	assert.Equal(t, notary.Rejected, summary.Notarization)
}

func TestRun_NotarizeMessages(t *testing.T) {
	tests := []struct {
		outcome notary.Outcome
		want    []string
		not     []string
	}{
		{
			outcome: notary.Success,
			want:    []string{"notarizing...\n", "notarization process at Apple completed\n"},
			not:     []string{"check manually"},
		},
		{
			outcome: notary.Rejected,
			want: []string{
				"notarization rejected by Apple\n",
				"check manually with: \n",
				"xcrun notarytool history --keychain-profile notary-profile\n",
			},
		},
		{
			outcome: notary.Failed,
			want: []string{
				"notarization process did not complete or was inconclusive\n",
				"check manually with: \n",
				"xcrun notarytool history --keychain-profile notary-profile\n",
			},
			not: []string{"completed\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			stages := newFakeStages()
			stages.verdict = tt.outcome
			var out bytes.Buffer

			_, err := New(stages, nil, report.New(&out)).Run(context.Background(), settings(), Request{Notarize: true})
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out.String(), want)
			}
			for _, not := range tt.not {
				assert.NotContains(t, out.String(), not)
			}
		})
	}
}

func TestRun_CancellationStops(t *testing.T) {
	stages := newFakeStages()
	stages.err = context.Canceled

	summary, err := New(stages, nil, nil).Run(context.Background(), settings(), Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"sign"}, stages.calls)
	assert.Empty(t, summary.Ran)
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
	t.Chdir(dir)

	ini := `[identification]
application_id = Developer ID Application: Example
installer_id = Developer ID Installer: Example
keychain-profile = notary-profile

[package_details]
package_name = MyTool
bundle_id = com.example.mytool
file_list = a.txt,b.txt
installation_path = /Applications/
entitlements = None
version = 1.0.0
`
	cfgPath := filepath.Join(dir, "pycodesign.ini")
	require.NoError(t, os.WriteFile(cfgPath, []byte(ini), 0644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Set(config.SectionPackageDetails, config.KeyVersion, "2.5.0")
	require.Empty(t, config.Validate(cfg, config.DefaultSchema()))

	var calls [][]string
	runner := cmdutil.RunnerFunc(func(ctx context.Context, cmd []string) (*cmdutil.Result, error) {
		calls = append(calls, cmd)
		if cmd[0] == "xcrun" && cmd[1] == "notarytool" {
			return &cmdutil.Result{Stdout: []byte("  status: Accepted\n")}, nil
		}
		return &cmdutil.Result{}, nil
	})
	var out bytes.Buffer
	reporter := report.New(&out)
	executor := stage.NewExecutor(runner, nil, reporter)
	executor.TempDir = t.TempDir()

	summary, err := New(executor, nil, reporter).Run(context.Background(), config.NewSettings(cfg), Request{})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, notary.Success, summary.Notarization)

	var tools []string
	for _, c := range calls {
		tools = append(tools, c[0])
	}
	assert.Equal(t, []string{"codesign", "ditto", "ditto", "productbuild", "xcrun", "xcrun"}, tools)

	assert.Equal(t, []string{"a.txt", "b.txt"}, calls[0][len(calls[0])-2:])
	assert.NotContains(t, calls[0], "--entitlements")
	assert.Equal(t, filepath.Base(calls[1][1]), "a.txt")
	assert.Equal(t, filepath.Base(calls[2][1]), "b.txt")
	assert.Contains(t, cmdutil.FormatCommand(calls[3]), "--version 2.5.0")
	assert.Equal(t, "./MyTool.pkg", calls[3][len(calls[3])-1])
	assert.Equal(t, []string{"xcrun", "stapler", "staple", "MyTool.pkg"}, calls[5])

	output := out.String()
	for _, heading := range []string{"signing...", "packaging...", "notarizing...", "stapling..."} {
		assert.Contains(t, output, heading)
	}
	assert.Less(t, strings.Index(output, "signing..."), strings.Index(output, "stapling..."))
}
