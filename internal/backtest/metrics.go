package backtest

import "math"

// accumulator collects point-error statistics incrementally.
type accumulator struct {
	n      int
	absSum float64
	sqSum  float64
}

func (a *accumulator) add(actual, predicted float64) {
	diff := actual - predicted
	a.n++
	a.absSum += math.Abs(diff)
	a.sqSum += diff * diff
}

func (a *accumulator) mae() float64 {
	if a.n == 0 {
		return 0
	}
	return a.absSum / float64(a.n)
}

func (a *accumulator) rmse() float64 {
	if a.n == 0 {
		return 0
	}
	return math.Sqrt(a.sqSum / float64(a.n))
}
