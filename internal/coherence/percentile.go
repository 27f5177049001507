package coherence

import (
	"math"
	"sort"
)

// percentileInPlace sorts values and returns their p-th percentile (0..100),
// interpolating linearly between the two closest ranks. It returns NaN when
// values is empty. Callers drop NaN values first.
func percentileInPlace(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if n == 1 {
		return values[0]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	if lo >= n-1 {
		return values[n-1]
	}
	frac := rank - float64(lo)
	return values[lo] + frac*(values[lo+1]-values[lo])
}
