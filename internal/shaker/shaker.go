// Package shaker searches the orderings of a code fragment's lines for a
// variant that is faster than the original, or correct when the original is not.
package shaker

import (
	"math"
	"strings"
)

// Mode is the objective of a search.
type Mode string

const (
	// ModeOptimize looks for the fastest correct ordering.
	ModeOptimize Mode = "optimize"
	// ModeRecovery looks for the first correct ordering.
	ModeRecovery Mode = "recovery"
)

const (
	// LineDelimiter separates the permutable units of a fragment.
	LineDelimiter = "\n"

	// NoSolution is reported as the result code when no correct ordering exists.
	NoSolution = "** NO SOLUTION FOUND **"

	// UnlikelyReturn is the value an evaluated fragment returns to mark a
	// timing run as unusable.
	UnlikelyReturn = "!!$^)&*_!#UnlikelyReturn%($"

	// DefaultIterations is the number of evaluator calls per timing run.
	DefaultIterations = 10000
)

// Evaluator runs an ordered list of statement lines as a function body.
//
// Implementations must be deterministic for identical inputs and must not
// keep state between calls that changes the outcome of later calls. A
// returned error means the candidate failed at runtime.
type Evaluator interface {
	Evaluate(lines []string, argNames []string, argValues []any) (any, error)
}

// EvaluatorFunc adapts an ordinary function to the Evaluator interface.
type EvaluatorFunc func(lines []string, argNames []string, argValues []any) (any, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(lines []string, argNames []string, argValues []any) (any, error) {
	return f(lines, argNames, argValues)
}

// Request describes one search.
type Request struct {
	// Code is the fragment; every line is one permutable unit.
	Code string `json:"code"`

	// ArgNames are the parameter names of the evaluated function.
	ArgNames []string `json:"arg_names,omitempty"`

	// ArgValues are bound positionally to ArgNames. Missing values are
	// left to the evaluator's notion of "undefined".
	ArgValues []any `json:"arg_values,omitempty"`

	// Expected is the value a correct ordering returns.
	Expected any `json:"expected"`
}

// CandidateResult is the outcome of evaluating one ordering.
type CandidateResult struct {
	Ordering []string
	Correct  bool
	// TimeMs is the average milliseconds per call; +Inf when not timed and
	// NaN when the measurement was unusable.
	TimeMs float64
}

// SplitLines splits a fragment into its permutable lines.
func SplitLines(code string) []string {
	return strings.Split(code, LineDelimiter)
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) string {
	return strings.Join(lines, LineDelimiter)
}

// better reports whether t strictly beats best. NaN never does.
func better(t, best float64) bool {
	return !math.IsNaN(t) && t < best
}
