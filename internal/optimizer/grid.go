// Package optimizer brute-forces strategy parameters: it enumerates a
// Cartesian grid lazily, prunes invalid combinations, backtests the rest,
// filters and scores them, and keeps a bounded leaderboard.
package optimizer

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Dimension is one tunable parameter and the values it takes.
type Dimension struct {
	Name   string
	Values []float64
}

// Params is one point of the grid, keyed by dimension name.
type Params map[string]float64

// Grid is an ordered set of dimensions. The last dimension varies fastest,
// so parameters that are expensive to change should come first.
type Grid []Dimension

// Size returns the number of combinations in the grid.
func (g Grid) Size() int64 {
	size := int64(1)
	for _, d := range g {
		size *= int64(len(d.Values))
	}
	return size
}

// All yields every combination in odometer order without materializing the product.
func (g Grid) All() iter.Seq[Params] {
	return func(yield func(Params) bool) {
		if g.Size() == 0 {
			return
		}
		idx := make([]int, len(g))
		for {
			p := make(Params, len(g))
			for d, dim := range g {
				p[dim.Name] = dim.Values[idx[d]]
			}
			if !yield(p) {
				return
			}

			d := len(g) - 1
			for ; d >= 0; d-- {
				idx[d]++
				if idx[d] < len(g[d].Values) {
					break
				}
				idx[d] = 0
			}
			if d < 0 {
				return
			}
		}
	}
}

// First returns the first value of the named dimension.
func (g Grid) First(name string) (float64, bool) {
	for _, d := range g {
		if d.Name == name && len(d.Values) > 0 {
			return d.Values[0], true
		}
	}
	return 0, false
}

// Describe renders p in grid order, e.g. "period=20 std_dev_multiplier=2".
func (g Grid) Describe(p Params) string {
	var sb strings.Builder
	for i, d := range g {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(d.Name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(p[d.Name], 'f', -1, 64))
	}
	return sb.String()
}

// Override replaces the values of named dimensions. Unknown names are rejected.
func (g Grid) Override(ranges map[string][]float64) (Grid, error) {
	out := make(Grid, len(g))
	copy(out, g)
	for name, values := range ranges {
		found := false
		for i := range out {
			if out[i].Name == name {
				out[i].Values = append([]float64(nil), values...)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
	}
	return out, nil
}

// steps returns from, from+step, ... up to and including to.
func steps(from, to, step float64) []float64 {
	var out []float64
	for v := from; v <= to+step/1e6; v += step {
		out = append(out, v)
	}
	return out
}
