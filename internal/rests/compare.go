package rests

import (
	"math"
	"slices"

	"github.com/listenupapp/restalign/internal/errors"
)

// DefaultEpsilon is the tolerance used when none is configured.
// Durations come from rational note values, so exact float equality is fragile.
const DefaultEpsilon = 1e-9

// Comparator compares two analyzed sequences position by position.
type Comparator struct {
	epsilon      float64
	convertUnits bool
}

// CompareOption configures a Comparator.
type CompareOption func(*Comparator)

// WithEpsilon sets the absolute tolerance for element equality.
// Zero means exact equality. Negative or NaN values are ignored.
func WithEpsilon(eps float64) CompareOption {
	return func(c *Comparator) {
		if eps >= 0 {
			c.epsilon = eps
		}
	}
}

// WithUnitConversion allows comparing sequences in different units by
// rescaling B into A's unit.
func WithUnitConversion() CompareOption {
	return func(c *Comparator) {
		c.convertUnits = true
	}
}

// NewComparator creates a comparator with the given options.
func NewComparator(opts ...CompareOption) *Comparator {
	c := &Comparator{epsilon: DefaultEpsilon}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Epsilon returns the configured tolerance.
func (c *Comparator) Epsilon() float64 {
	return c.epsilon
}

// Compare compares the duration lists carried by the two reports.
func (c *Comparator) Compare(a, b AnalysisReport) (ComparisonReport, error) {
	return c.CompareLists(a, b, a.Durations, b.Durations)
}

// CompareLists compares a and b using explicit duration lists, each in the
// unit of its report. Counts and totals come from the reports.
func (c *Comparator) CompareLists(a, b AnalysisReport, listA, listB []float64) (ComparisonReport, error) {
	factor := 1.0
	if a.Unit != b.Unit {
		if !c.convertUnits {
			return ComparisonReport{}, errors.UnitMismatchf(
				"cannot compare %q (%s) with %q (%s) without unit conversion", a.Label, a.Unit, b.Label, b.Unit)
		}
		factor = b.Unit.Factor(a.Unit)
	}

	if factor != 1 {
		scaled := make([]float64, len(listB))
		for i, v := range listB {
			scaled[i] = v * factor
		}
		listB = scaled
	}
	totalB := b.Rests.Total * factor

	return ComparisonReport{
		LabelA:        a.Label,
		LabelB:        b.Label,
		Unit:          a.Unit,
		CountA:        a.Rests.Count,
		CountB:        b.Rests.Count,
		CountDelta:    a.Rests.Count - b.Rests.Count,
		TotalA:        a.Rests.Total,
		TotalB:        totalB,
		TotalDelta:    a.Rests.Total - totalB,
		FirstMismatch: FirstMismatch(listA, listB, c.epsilon),
		PrefixMatch:   PrefixMatchCount(listA, listB, c.epsilon),
		CommonLength:  min(len(listA), len(listB)),
		Epsilon:       c.epsilon,
		Converted:     factor != 1,
	}, nil
}

// Compare compares two reports with a one-off comparator.
func Compare(a, b AnalysisReport, opts ...CompareOption) (ComparisonReport, error) {
	return NewComparator(opts...).Compare(a, b)
}

// FirstMismatch returns the first index i < min(len(a), len(b)) where a[i]
// and b[i] differ by more than eps, or NoMismatch.
func FirstMismatch(a, b []float64, eps float64) Mismatch {
	n := min(len(a), len(b))
	for i := range n {
		if !within(a[i], b[i], eps) {
			return Mismatch{Index: i, A: a[i], B: b[i], Delta: a[i] - b[i]}
		}
	}
	return NoMismatch
}

// PrefixMatchCount returns the length of the longest common prefix of a and
// b under tolerance eps.
func PrefixMatchCount(a, b []float64, eps float64) int {
	if m := FirstMismatch(a, b, eps); m.Found() {
		return m.Index
	}
	return min(len(a), len(b))
}

// Equal reports whether a and b have the same length and match element-wise.
func Equal(a, b []float64, eps float64) bool {
	return slices.EqualFunc(a, b, func(x, y float64) bool { return within(x, y, eps) })
}

func within(x, y, eps float64) bool {
	if x == y {
		return true
	}
	return math.Abs(x-y) <= eps
}
