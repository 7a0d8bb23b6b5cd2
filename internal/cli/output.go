package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/copyleftdev/shakelines/internal/shaker"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Search ended without a result (no solution, interrupted)
	ExitCommandError = 2 // Command error (bad flags, unreadable input, invalid code)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Success writes data. In text format text is called to render it.
func (f *OutputFormatter) Success(data interface{}, text func(io.Writer) error) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Failure writes data together with an error message; the text rendering
// is the same as for Success.
func (f *OutputFormatter) Failure(data interface{}, message string, text func(io.Writer) error) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "error", Data: data, Error: message})
	}
	return text(f.Writer)
}

func (f *OutputFormatter) encode(v interface{}) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// writeReport renders a search report for humans.
func writeReport(w io.Writer, r *shaker.Report) error {
	result := "no solution"
	if r.Solved() {
		result = "solved"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %s\n", "Mode:", r.Mode)
	fmt.Fprintf(&b, "%-12s %s\n", "Result:", result)
	fmt.Fprintf(&b, "%-12s %s\n", "Best time:", perCall(r.BestTimeMs))
	fmt.Fprintf(&b, "%-12s %s\n", "Baseline:", perCall(r.BaselineMs))
	fmt.Fprintf(&b, "%-12s %s\n", "Estimate:", ms(r.EstimatedMs))
	fmt.Fprintf(&b, "%-12s %d orderings of %d lines (%d correct, %d aborted, %d unmeasurable)\n",
		"Explored:", r.Explored, r.Lines, r.Correct, r.Aborted, r.Unmeasurable)
	fmt.Fprintf(&b, "%-12s %d\n", "Iterations:", r.Iterations)
	fmt.Fprintf(&b, "%-12s %s\n", "Duration:", r.Duration)
	b.WriteString("\n")
	b.WriteString(r.ResultCode)
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func ms(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f ms", v)
}

func perCall(v float64) string {
	s := ms(v)
	if s == "n/a" {
		return s
	}
	return s + "/call"
}
