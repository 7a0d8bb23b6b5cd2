package shaker

import "math"

// Store holds the best candidate of a single search.
// It is owned by one Run call and never shared between searches.
type Store struct {
	// FastestCode is the best ordering found so far. It starts as the
	// original fragment.
	FastestCode []string
	// BestTimeMs is the average milliseconds per call of FastestCode;
	// +Inf until a correct candidate has been accepted.
	BestTimeMs float64
	// Recovery is set when the original fragment is not correct.
	Recovery bool
	// Iterations is the number of evaluator calls per timing run.
	Iterations int

	explored     int
	correct      int
	aborted      int
	unmeasurable int
}

// NewStore creates a store seeded with the original fragment.
func NewStore(original []string, iterations int) *Store {
	return &Store{
		FastestCode: append([]string(nil), original...),
		BestTimeMs:  math.Inf(1),
		Iterations:  iterations,
	}
}

// EnableRecovery switches the search objective to "first correct".
func (s *Store) EnableRecovery() {
	s.Recovery = true
}

// Mode returns the current search objective.
func (s *Store) Mode() Mode {
	if s.Recovery {
		return ModeRecovery
	}
	return ModeOptimize
}

// Offer promotes a correct candidate when its time strictly beats the best.
// Incorrect candidates, NaN times and ties leave the store unchanged.
func (s *Store) Offer(c CandidateResult) bool {
	if !c.Correct || !better(c.TimeMs, s.BestTimeMs) {
		return false
	}
	s.FastestCode = append([]string(nil), c.Ordering...)
	s.BestTimeMs = c.TimeMs
	return true
}

// Solved reports whether a correct candidate has been accepted.
func (s *Store) Solved() bool {
	return !math.IsInf(s.BestTimeMs, 1) && !math.IsNaN(s.BestTimeMs)
}
