package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/shakelines/internal/shaker"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "shakelines", cmd.Use)

	for _, name := range []string{"run", "samples", "serve"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "--format", "yaml", "samples")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWriteReport(t *testing.T) {
	tests := []struct {
		name   string
		report *shaker.Report
	}{
		{
			name: "report_solved",
			report: &shaker.Report{
				Mode:        shaker.ModeOptimize,
				ResultCode:  "a = 3;\nreturn 0;",
				BestTimeMs:  0.0012,
				BaselineMs:  0.002,
				EstimatedMs: 240,
				Lines:       2,
				Iterations:  10000,
				Explored:    2,
				Correct:     2,
				Aborted:     1,
				Duration:    1500 * time.Millisecond,
			},
		},
		{
			name: "report_no_solution",
			report: &shaker.Report{
				Mode:        shaker.ModeRecovery,
				ResultCode:  shaker.NoSolution,
				BestTimeMs:  math.Inf(1),
				BaselineMs:  math.Inf(1),
				EstimatedMs: math.Inf(1),
				Lines:       4,
				Iterations:  10000,
				Explored:    24,
				Duration:    30 * time.Millisecond,
			},
		},
	}

	g := newGolden(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeReport(&buf, tt.report))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestSamplesCommand(t *testing.T) {
	g := newGolden(t)

	out, err := execute(t, "", "samples")
	require.NoError(t, err)
	g.Assert(t, "samples_list", []byte(out))

	out, err = execute(t, "", "samples", "optimize")
	require.NoError(t, err)
	g.Assert(t, "sample_optimize", []byte(out))

	_, err = execute(t, "", "samples", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSamplesCommandJSON(t *testing.T) {
	out, err := execute(t, "", "--format", "json", "samples")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Samples []struct {
				Name string `json:"name"`
			} `json:"samples"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Samples, 3)
}

func TestSamplesCommandCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("samples:\n  - name: one\n    description: only one\n    code: \"return 1;\"\n"), 0o644))

	out, err := execute(t, "", "samples", "--catalog", path)
	require.NoError(t, err)
	assert.Equal(t, "one            only one\n", out)
}

func TestRunSamples(t *testing.T) {
	tests := []struct {
		sample   string
		mode     string
		solved   bool
		exitCode int
	}{
		{"optimize", "optimize", true, ExitSuccess},
		{"recovery", "recovery", true, ExitSuccess},
		{"no-solution", "recovery", false, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.sample, func(t *testing.T) {
			out, err := execute(t, "", "run", "--sample", tt.sample, "--iterations", "5")
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, "Mode:        "+tt.mode)
			if tt.solved {
				assert.Contains(t, out, "Result:      solved")
				assert.NotContains(t, out, shaker.NoSolution)
			} else {
				assert.Contains(t, out, "Result:      no solution")
				assert.Contains(t, out, shaker.NoSolution)
			}
		})
	}
}

func TestRunFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.js")
	require.NoError(t, os.WriteFile(path, []byte("a = 1;\nreturn a + n;"), 0o644))

	out, err := execute(t, "", "--format", "json", "run", path,
		"--args", "n", "--values", "[2]", "--expected", "3", "--iterations", "5")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Mode       string `json:"mode"`
			ResultCode string `json:"result_code"`
			Solved     bool   `json:"solved"`
			Explored   int    `json:"explored"`
			Iterations int    `json:"iterations"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "optimize", resp.Data.Mode)
	assert.Equal(t, "a = 1;\nreturn a + n;", resp.Data.ResultCode)
	assert.True(t, resp.Data.Solved)
	assert.Equal(t, 2, resp.Data.Explored)
	assert.Equal(t, 5, resp.Data.Iterations)
}

func TestRunStdin(t *testing.T) {
	out, err := execute(t, "return x;\nx = 7;", "run", "-", "--expected", "7", "--iterations", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode:        recovery")
	assert.Contains(t, out, "x = 7;\nreturn x;\n")
}

func TestRunErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.js")
	require.NoError(t, os.WriteFile(path, []byte("return 1;"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"no code", []string{"run"}},
		{"file and sample", []string{"run", path, "--sample", "optimize"}},
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "nope.js")}},
		{"unknown sample", []string{"run", "--sample", "nope"}},
		{"values not an array", []string{"run", path, "--args", "n", "--values", "2"}},
		{"expected not json", []string{"run", path, "--expected", "one"}},
		{"more values than names", []string{"run", path, "--values", "[1]"}},
		{"max lines out of range", []string{"run", path, "--max-lines", "0"}},
		{"unknown equality", []string{"run", path, "--equality", "fuzzy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := WrapExitError(ExitFailure, "search interrupted", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, "search interrupted: "+assert.AnError.Error(), wrapped.Error())
}
