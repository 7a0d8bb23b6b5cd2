package shaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// candidatesTotal counts evaluated orderings by outcome
	candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shakelines_candidates_total",
		Help: "Evaluated orderings by outcome",
	}, []string{"outcome"})

	// searchesTotal counts finished searches by mode and result
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shakelines_searches_total",
		Help: "Finished searches by mode and result",
	}, []string{"mode", "result"})

	// searchDuration tracks the wall time of whole searches
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shakelines_search_duration_seconds",
		Help:    "Search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.4min
	}, []string{"mode"})
)

const (
	outcomeRejected     = "rejected"
	outcomeAccepted     = "accepted"
	outcomeSlower       = "slower"
	outcomeAborted      = "aborted"
	outcomeUnmeasurable = "unmeasurable"

	resultSolved     = "solved"
	resultNoSolution = "no_solution"
	resultCancelled  = "cancelled"
)
