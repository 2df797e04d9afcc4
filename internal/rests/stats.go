package rests

import (
	"math"
	"slices"

	"github.com/aclements/go-moremath/stats"
)

// Describe computes a Summary over xs. xs is not modified.
//
// An empty list yields zeros. Median and StdDev are NaN for fewer than two
// values.
func Describe(xs []float64) Summary {
	n := len(xs)
	if n == 0 {
		nan := math.NaN()
		return Summary{Median: nan, StdDev: nan}
	}

	samp := stats.Sample{Xs: xs}
	lo, hi := samp.Bounds()
	total := samp.Sum()

	sum := Summary{
		Count:  n,
		Total:  total,
		Min:    lo,
		Max:    hi,
		Mean:   total / float64(n),
		Median: math.NaN(),
		StdDev: math.NaN(),
	}
	if n > 1 {
		sum.Median = Median(xs)
		sum.StdDev = samp.StdDev()
	}
	return sum
}

// Median returns the order-statistic median of xs, averaging the two middle
// values for an even count. NaN for an empty list.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	s := sortedCopy(xs)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Quantile returns the p-quantile of xs using linear interpolation between
// order statistics (h = (n-1)p). p is clamped to [0, 1].
func Quantile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return quantileSorted(sortedCopy(xs), p)
}

// QuartilesOf returns q25, q50 and q75 of xs, all zero for an empty list.
func QuartilesOf(xs []float64) Quartiles {
	if len(xs) == 0 {
		return Quartiles{}
	}
	s := sortedCopy(xs)
	return Quartiles{
		Q25: quantileSorted(s, 0.25),
		Q50: quantileSorted(s, 0.50),
		Q75: quantileSorted(s, 0.75),
	}
}

func quantileSorted(s []float64, p float64) float64 {
	p = math.Max(0, math.Min(1, p))
	h := float64(len(s)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	if lo == hi {
		return s[int(lo)]
	}
	return s[int(lo)] + (h-lo)*(s[int(hi)]-s[int(lo)])
}

func sortedCopy(xs []float64) []float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	return s
}
