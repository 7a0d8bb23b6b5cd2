package shaker

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// fakeClock only moves when told to.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

var errReference = errors.New("reference error")

// stepEvaluator interprets a tiny statement language, one statement per line:
//
//	name = 3;        assign an integer
//	return name;     return a variable (fails if unassigned)
//	return 3;        return an integer
//	return undefined;
//	return sentinel; return UnlikelyReturn
//	sleep 5;         advance the clock by 5ms
//	throw;           fail
//
// Falling off the end returns nil.
type stepEvaluator struct {
	clock *fakeClock
	calls int
	last  struct {
		names  []string
		values []any
	}
}

func newStepEvaluator(clock *fakeClock) *stepEvaluator {
	return &stepEvaluator{clock: clock}
}

func (e *stepEvaluator) Evaluate(lines []string, argNames []string, argValues []any) (any, error) {
	e.calls++
	e.last.names = argNames
	e.last.values = argValues

	vars := make(map[string]int64)
	for _, raw := range lines {
		stmt := strings.TrimSuffix(strings.TrimSpace(raw), ";")
		switch {
		case stmt == "":
		case stmt == "throw":
			return nil, errors.New("thrown")
		case strings.HasPrefix(stmt, "sleep "):
			ms, err := strconv.Atoi(strings.TrimPrefix(stmt, "sleep "))
			if err != nil {
				return nil, err
			}
			if e.clock != nil {
				e.clock.advance(time.Duration(ms) * time.Millisecond)
			}
		case strings.HasPrefix(stmt, "return "):
			return e.value(strings.TrimPrefix(stmt, "return "), vars)
		case strings.Contains(stmt, "="):
			parts := strings.SplitN(stmt, "=", 2)
			v, err := e.value(strings.TrimSpace(parts[1]), vars)
			if err != nil {
				return nil, err
			}
			n, _ := v.(int64)
			vars[strings.TrimSpace(parts[0])] = n
		default:
			return nil, errors.New("syntax error: " + stmt)
		}
	}
	return nil, nil
}

func (e *stepEvaluator) value(expr string, vars map[string]int64) (any, error) {
	switch expr {
	case "undefined":
		return nil, nil
	case "sentinel":
		return UnlikelyReturn, nil
	}
	if n, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return n, nil
	}
	if v, ok := vars[expr]; ok {
		return v, nil
	}
	return nil, errReference
}
