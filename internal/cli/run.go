package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/shakelines/internal/config"
	"github.com/copyleftdev/shakelines/internal/logging"
	"github.com/copyleftdev/shakelines/internal/samples"
	"github.com/copyleftdev/shakelines/internal/shaker"
	"github.com/copyleftdev/shakelines/internal/shaker/jsengine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Sample     string
	Catalog    string
	ArgNames   []string
	ArgValues  string // JSON array
	Expected   string // JSON value
	Iterations int
	MaxLines   int
	Equality   string
	Timeout    time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Search the line orderings of a code fragment",
		Long: `Search every ordering of the lines of a JavaScript function body.

The fragment is read from file, from stdin when file is "-", or taken from
the sample catalog with --sample. Arguments and the expected return value are
given as JSON. Without --expected the fragment is expected to return
undefined.

Exits 1 when no ordering returns the expected value.`,
		Example: `  shakelines run --sample optimize
  shakelines run body.js --args n,m --values '[2, 3]' --expected 0`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Sample, "sample", "s", "", "run a sample from the catalog")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "YAML sample catalog (default: built-in)")
	cmd.Flags().StringSliceVar(&opts.ArgNames, "args", nil, "parameter names of the function")
	cmd.Flags().StringVar(&opts.ArgValues, "values", "", "argument values as a JSON array")
	cmd.Flags().StringVar(&opts.Expected, "expected", "", "expected return value as JSON")
	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "n", 0, "evaluator calls per timing run (default SHAKE_ITERATIONS)")
	cmd.Flags().IntVar(&opts.MaxLines, "max-lines", 0, "largest fragment accepted (default SHAKE_MAX_LINES)")
	cmd.Flags().StringVar(&opts.Equality, "equality", "", "result comparison, loose or strict (default SHAKE_EQUALITY)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "interrupt a single call after this long (default SHAKE_CALL_TIMEOUT)")

	return cmd
}

func runRun(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions, args []string) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	applyRunFlags(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}

	req, err := buildRequest(cmd, opts, args)
	if err != nil {
		return err
	}

	equality, err := shaker.EqualityByName(cfg.Shake.Equality)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}

	sh, err := shaker.New(jsengine.New(jsengine.Config{CallTimeout: cfg.Shake.CallTimeout}), shaker.Config{
		Iterations: cfg.Shake.Iterations,
		MaxLines:   cfg.Shake.MaxLines,
		Equality:   equality,
		Logger:     logging.NewZapLogger(runLogger(formatter)),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "create shaker", err)
	}
	if err := sh.Validate(req); err != nil {
		return WrapExitError(ExitCommandError, "invalid input", err)
	}

	formatter.VerboseLog("Searching %d lines with %d iterations per timing run",
		len(shaker.SplitLines(req.Code)), cfg.Shake.Iterations)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, err := sh.Run(ctx, req)
	text := func(w io.Writer) error { return writeReport(w, report) }
	switch {
	case err != nil && report == nil:
		return WrapExitError(ExitCommandError, "search failed", err)
	case err != nil:
		if outErr := formatter.Failure(report, "search interrupted", text); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "search interrupted", err)
	case !report.Solved():
		if outErr := formatter.Failure(report, "no solution found", text); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, "no solution found")
	}
	return formatter.Success(report, text)
}

// applyRunFlags overrides the environment configuration with the flags
// given on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts *RunOptions) {
	flags := cmd.Flags()
	if flags.Changed("iterations") {
		cfg.Shake.Iterations = opts.Iterations
	}
	if flags.Changed("max-lines") {
		cfg.Shake.MaxLines = opts.MaxLines
	}
	if flags.Changed("equality") {
		cfg.Shake.Equality = opts.Equality
	}
	if flags.Changed("timeout") {
		cfg.Shake.CallTimeout = opts.Timeout
	}
}

// buildRequest assembles the search request from a sample or a code file
// and the argument flags. Flags override sample fields.
func buildRequest(cmd *cobra.Command, opts *RunOptions, args []string) (shaker.Request, error) {
	var req shaker.Request

	switch {
	case opts.Sample != "" && len(args) > 0:
		return req, NewExitError(ExitCommandError, "give either a file or --sample, not both")
	case opts.Sample != "":
		catalog, err := loadCatalog(opts.Catalog)
		if err != nil {
			return req, err
		}
		sample, err := catalog.Find(opts.Sample)
		if err != nil {
			return req, WrapExitError(ExitCommandError, "find sample", err)
		}
		req = sample.Request()
	case len(args) == 1:
		code, err := readCode(cmd, args[0])
		if err != nil {
			return req, WrapExitError(ExitCommandError, "read code", err)
		}
		req.Code = code
	default:
		return req, NewExitError(ExitCommandError, "no code given: pass a file, - for stdin, or --sample")
	}

	flags := cmd.Flags()
	if flags.Changed("args") {
		req.ArgNames = opts.ArgNames
	}
	if flags.Changed("values") {
		var values []any
		if err := json.Unmarshal([]byte(opts.ArgValues), &values); err != nil {
			return req, WrapExitError(ExitCommandError, "--values must be a JSON array", err)
		}
		req.ArgValues = values
	}
	if flags.Changed("expected") {
		var expected any
		if err := json.Unmarshal([]byte(opts.Expected), &expected); err != nil {
			return req, WrapExitError(ExitCommandError, "--expected must be JSON", err)
		}
		req.Expected = expected
	}
	return req, nil
}

func readCode(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return "", fmt.Errorf("%s: %w", path, pathErr.Err)
		}
		return "", err
	}
	return string(data), nil
}

func loadCatalog(path string) (*samples.Catalog, error) {
	var (
		catalog *samples.Catalog
		err     error
	)
	if path == "" {
		catalog, err = samples.Builtin()
	} else {
		catalog, err = samples.LoadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load catalog", err)
	}
	return catalog, nil
}

// runLogger writes search logs as text to the diagnostic writer; debug
// entries only appear with --verbose.
func runLogger(f *OutputFormatter) *logging.Logger {
	level := logging.WarnLevel
	if f.Verbose {
		level = logging.DebugLevel
	}
	return logging.New(level, f.GetErrWriter()).WithFormat(logging.FormatText)
}
