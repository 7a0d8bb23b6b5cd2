// Package permute enumerates the orderings of a line sequence.
package permute

import (
	"iter"
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// maxExactCount is the largest n whose n! fits in an int64.
const maxExactCount = 20

// Generator lazily yields every ordering of a fixed sequence of lines.
//
// Orderings come out in lexicographic order of the original line positions,
// which is the order produced by repeatedly picking the next remaining line
// and recursing on the rest. Equal lines at different positions are distinct,
// so a sequence of n lines always yields exactly n! orderings.
// A Generator cannot be restarted.
type Generator struct {
	lines []string
	idx   []int
	next  bool
	done  bool
}

// New creates a generator over lines. The slice is not modified.
func New(lines []string) *Generator {
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	return &Generator{
		lines: lines,
		idx:   idx,
	}
}

// Next returns the next ordering, or false once all orderings were produced.
// Every returned slice is freshly allocated.
func (g *Generator) Next() ([]string, bool) {
	if g.done {
		return nil, false
	}
	if g.next && !g.advance() {
		g.done = true
		return nil, false
	}
	g.next = true

	out := make([]string, len(g.idx))
	for i, j := range g.idx {
		out[i] = g.lines[j]
	}
	return out, true
}

// All returns the remaining orderings as a sequence.
func (g *Generator) All() iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for {
			p, ok := g.Next()
			if !ok || !yield(p) {
				return
			}
		}
	}
}

// advance moves idx to its lexicographic successor.
func (g *Generator) advance() bool {
	n := len(g.idx)
	i := n - 2
	for i >= 0 && g.idx[i] >= g.idx[i+1] {
		i--
	}
	if i < 0 {
		return false
	}

	j := n - 1
	for g.idx[j] <= g.idx[i] {
		j--
	}
	g.idx[i], g.idx[j] = g.idx[j], g.idx[i]

	for l, r := i+1, n-1; l < r; l, r = l+1, r-1 {
		g.idx[l], g.idx[r] = g.idx[r], g.idx[l]
	}
	return true
}

// Count returns n!, the number of orderings of n lines, as a float64.
// It is +Inf when n! does not fit in an int64.
func Count(n int) float64 {
	if n < 0 {
		return 0
	}
	if n > maxExactCount {
		return math.Inf(1)
	}
	return float64(combin.NumPermutations(n, n))
}
