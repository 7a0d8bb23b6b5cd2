package shaker

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/copyleftdev/shakelines/internal/shaker/permute"
)

// DefaultMaxLines bounds the fragment size; 9 lines are 362880 orderings.
const DefaultMaxLines = 9

// Config configures a Shaker.
type Config struct {
	// Iterations is the number of evaluator calls per timing run.
	Iterations int

	// MaxLines rejects fragments with more lines than this.
	MaxLines int

	// Equality compares results with the expected output.
	Equality Equality

	// Clock measures elapsed time.
	Clock Clock

	// Logger receives search progress.
	Logger *zap.Logger

	// Observer, if set, is called once for every explored ordering after
	// its outcome is known.
	Observer func(CandidateResult)
}

// Shaker runs line-permutation searches against one Evaluator.
// A Shaker runs one search at a time; it is as safe for concurrent use as
// its Evaluator.
type Shaker struct {
	eval   Evaluator
	cfg    Config
	logger *zap.Logger
}

// timing is how a timing run ended.
type timing int

const (
	timingMeasured timing = iota
	timingAborted
	timingUnusable
)

// New creates a Shaker, filling in defaults for unset configuration.
func New(eval Evaluator, cfg Config) (*Shaker, error) {
	if eval == nil {
		return nil, NewError("evaluator is required").WithOperation("new")
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.MaxLines < 1 {
		cfg.MaxLines = DefaultMaxLines
	}
	if cfg.Equality == nil {
		cfg.Equality = LooseEqual
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Shaker{
		eval:   eval,
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Run searches the orderings of req.Code.
//
// When the original fragment is correct the search keeps the fastest correct
// ordering; otherwise it stops at the first correct one. A search that finds
// nothing is not an error: the report carries NoSolution instead. If ctx is
// cancelled the partial report is returned together with ctx.Err().
func (s *Shaker) Run(ctx context.Context, req Request) (*Report, error) {
	start := s.cfg.Clock.Now()

	if err := s.Validate(req); err != nil {
		return nil, err
	}

	lines := SplitLines(req.Code)
	store := NewStore(lines, s.cfg.Iterations)
	logger := s.logger.With(
		zap.Int("lines", len(lines)),
		zap.Int("iterations", s.cfg.Iterations),
	)

	if ok, _ := s.check(lines, req); !ok {
		store.EnableRecovery()
		logger.Warn("code does not return what is expected, recovery mode enabled")
	}

	baseline := math.Inf(1)
	if !store.Recovery {
		t, outcome := s.measure(lines, req, math.Inf(1))
		if outcome == timingUnusable {
			logger.Warn("baseline timing unusable")
		} else {
			baseline = t
			store.BestTimeMs = t
		}
	}

	estimate := baseline * float64(s.cfg.Iterations) * permute.Count(len(lines))
	logger.Info("estimated time to finish",
		zap.Float64("baseline_ms", baseline),
		zap.Float64("estimated_ms", estimate),
		zap.String("mode", string(store.Mode())),
	)

	err := s.search(ctx, lines, req, store)
	report := newReport(store, baseline, estimate, len(lines), s.cfg.Clock.Now().Sub(start))

	result := resultNoSolution
	switch {
	case err != nil:
		result = resultCancelled
	case report.Solved():
		result = resultSolved
	}
	searchesTotal.WithLabelValues(string(report.Mode), result).Inc()
	searchDuration.WithLabelValues(string(report.Mode)).Observe(report.Duration.Seconds())

	logger.Info("search finished",
		zap.String("mode", string(report.Mode)),
		zap.String("result", result),
		zap.Float64("best_time_ms", report.BestTimeMs),
		zap.Int("explored", report.Explored),
		zap.Int("correct", report.Correct),
		zap.Int("aborted", report.Aborted),
	)

	return report, err
}

// Validate reports whether req can be searched by this Shaker.
func (s *Shaker) Validate(req Request) error {
	if strings.TrimSpace(req.Code) == "" {
		return NewError("code is empty").WithOperation("validate")
	}
	if n := len(SplitLines(req.Code)); n > s.cfg.MaxLines {
		return NewErrorf("code has %d lines, at most %d are allowed", n, s.cfg.MaxLines).WithOperation("validate")
	}
	if len(req.ArgValues) > len(req.ArgNames) {
		return NewErrorf("%d argument values for %d argument names", len(req.ArgValues), len(req.ArgNames)).WithOperation("validate")
	}
	return nil
}

// search walks every ordering of lines and records the best one in store.
func (s *Shaker) search(ctx context.Context, lines []string, req Request, store *Store) error {
	gen := permute.New(lines)

	for ordering := range gen.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		store.explored++

		ok, elapsed := s.check(ordering, req)
		if !ok {
			candidatesTotal.WithLabelValues(outcomeRejected).Inc()
			s.observe(CandidateResult{Ordering: ordering, TimeMs: math.Inf(1)})
			continue
		}
		store.correct++

		// First correct ordering wins in recovery mode.
		if store.Recovery {
			c := CandidateResult{Ordering: ordering, Correct: true, TimeMs: elapsed}
			store.Offer(c)
			candidatesTotal.WithLabelValues(outcomeAccepted).Inc()
			s.observe(c)
			return nil
		}

		t, outcome := s.measure(ordering, req, store.BestTimeMs)
		c := CandidateResult{Ordering: ordering, Correct: true, TimeMs: t}
		switch outcome {
		case timingAborted:
			store.aborted++
			candidatesTotal.WithLabelValues(outcomeAborted).Inc()
		case timingUnusable:
			store.unmeasurable++
			candidatesTotal.WithLabelValues(outcomeUnmeasurable).Inc()
		default:
			if store.Offer(c) {
				candidatesTotal.WithLabelValues(outcomeAccepted).Inc()
				s.logger.Debug("new fastest ordering", zap.Float64("time_ms", t))
			} else {
				candidatesTotal.WithLabelValues(outcomeSlower).Inc()
			}
		}
		s.observe(c)
	}
	return nil
}

func (s *Shaker) observe(c CandidateResult) {
	if s.cfg.Observer != nil {
		s.cfg.Observer(c)
	}
}

// check evaluates ordering once and compares the result with the expected
// output. It also returns the wall time of that call in milliseconds.
func (s *Shaker) check(ordering []string, req Request) (bool, float64) {
	start := s.cfg.Clock.Now()
	got, err := s.eval.Evaluate(ordering, req.ArgNames, req.ArgValues)
	elapsed := millis(s.cfg.Clock.Now().Sub(start))

	if err != nil {
		s.logger.Debug("candidate failed", zap.Error(err))
		return false, elapsed
	}
	if !s.cfg.Equality(got, req.Expected) {
		s.logger.Debug("candidate returned unexpected value", zap.String("got", describe(got)))
		return false, elapsed
	}
	return true, elapsed
}

// measure returns the average milliseconds per evaluator call over the
// configured number of iterations.
//
// Every iterations/100 calls the elapsed time is compared against
// bestMs*iterations; once it is exceeded the candidate cannot win and bestMs
// is returned unchanged. A failing call or an UnlikelyReturn result makes the
// measurement unusable and yields NaN.
func (s *Shaker) measure(ordering []string, req Request, bestMs float64) (float64, timing) {
	n := s.cfg.Iterations
	checkpoint := n / 100
	if checkpoint < 1 {
		checkpoint = 1
	}
	budget := bestMs * float64(n)

	start := s.cfg.Clock.Now()
	for i := 1; i <= n; i++ {
		got, err := s.eval.Evaluate(ordering, req.ArgNames, req.ArgValues)
		if err != nil {
			return math.NaN(), timingUnusable
		}
		if v, ok := got.(string); ok && v == UnlikelyReturn {
			return math.NaN(), timingUnusable
		}

		if i%checkpoint == 0 && i < n {
			if millis(s.cfg.Clock.Now().Sub(start)) > budget {
				return bestMs, timingAborted
			}
		}
	}
	return millis(s.cfg.Clock.Now().Sub(start)) / float64(n), timingMeasured
}
