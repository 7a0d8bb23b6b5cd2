package shaker

import (
	"encoding/json"
	"math"
	"time"
)

// Report is the outcome of one search.
type Report struct {
	// Mode is the objective the search ended in.
	Mode Mode
	// ResultCode is the fastest (optimize) or first working (recovery)
	// ordering, or NoSolution.
	ResultCode string
	// BestTimeMs is the average milliseconds per call of ResultCode;
	// +Inf when nothing was found.
	BestTimeMs float64
	// BaselineMs is the measured time of the original fragment;
	// +Inf in recovery mode.
	BaselineMs float64
	// EstimatedMs is the naive worst-case duration of the full search.
	EstimatedMs float64

	Lines        int
	Iterations   int
	Explored     int
	Correct      int
	Aborted      int
	Unmeasurable int
	Duration     time.Duration
}

// Solved reports whether the search found a correct ordering.
func (r *Report) Solved() bool {
	return finite(r.BestTimeMs)
}

type reportJSON struct {
	Mode         Mode     `json:"mode"`
	ResultCode   string   `json:"result_code"`
	Solved       bool     `json:"solved"`
	BestTimeMs   *float64 `json:"best_time_ms"`
	BaselineMs   *float64 `json:"baseline_ms"`
	EstimatedMs  *float64 `json:"estimated_ms"`
	Lines        int      `json:"lines"`
	Iterations   int      `json:"iterations"`
	Explored     int      `json:"explored"`
	Correct      int      `json:"correct"`
	Aborted      int      `json:"aborted"`
	Unmeasurable int      `json:"unmeasurable"`
	DurationMs   float64  `json:"duration_ms"`
}

// MarshalJSON encodes infinite and NaN times as null.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		Mode:         r.Mode,
		ResultCode:   r.ResultCode,
		Solved:       r.Solved(),
		BestTimeMs:   finitePtr(r.BestTimeMs),
		BaselineMs:   finitePtr(r.BaselineMs),
		EstimatedMs:  finitePtr(r.EstimatedMs),
		Lines:        r.Lines,
		Iterations:   r.Iterations,
		Explored:     r.Explored,
		Correct:      r.Correct,
		Aborted:      r.Aborted,
		Unmeasurable: r.Unmeasurable,
		DurationMs:   millis(r.Duration),
	})
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func finitePtr(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}

// newReport builds the report from the final store contents.
func newReport(store *Store, baselineMs, estimatedMs float64, lines int, d time.Duration) *Report {
	r := &Report{
		Mode:         store.Mode(),
		BestTimeMs:   store.BestTimeMs,
		BaselineMs:   baselineMs,
		EstimatedMs:  estimatedMs,
		Lines:        lines,
		Iterations:   store.Iterations,
		Explored:     store.explored,
		Correct:      store.correct,
		Aborted:      store.aborted,
		Unmeasurable: store.unmeasurable,
		Duration:     d,
	}
	if store.Solved() {
		r.ResultCode = JoinLines(store.FastestCode)
	} else {
		r.ResultCode = NoSolution
		r.BestTimeMs = math.Inf(1)
	}
	return r
}
