package rests

import (
	"math"

	"github.com/listenupapp/restalign/internal/errors"
)

// Analyze computes an AnalysisReport for seq.
//
// Degenerate intervals (end <= start, non-finite bounds) and starts that go
// backwards are rejected with an INVALID_SEQUENCE error. Overlap between
// ascending intervals is not an error; it clears SortedAndNonOverlapping so
// the caller can diagnose the segmentation.
func Analyze(seq Sequence) (AnalysisReport, error) {
	if err := Validate(seq); err != nil {
		return AnalysisReport{}, err
	}

	n := len(seq.Intervals)
	durations := make([]float64, n)
	extents := make([]float64, n)
	for i, iv := range seq.Intervals {
		durations[i] = iv.Duration()
		extents[i] = seq.Unit.ToQuarter(durations[i])
	}

	report := AnalysisReport{
		Label:                   seq.Label,
		Unit:                    seq.Unit,
		Rests:                   Describe(durations),
		Quartiles:               QuartilesOf(durations),
		Gaps:                    Describe(Gaps(seq)),
		SortedAndNonOverlapping: NonOverlapping(seq.Intervals),
		Durations:               durations,
	}
	if n > 0 {
		ext := Describe(extents)
		report.MinInterval = ext.Min
		report.MaxInterval = ext.Max
	}

	return report, nil
}

// Validate checks the hard structural rules of a sequence.
func Validate(seq Sequence) error {
	if !seq.Unit.Valid() {
		return errors.InvalidSequencef("sequence %q: unknown unit %q", seq.Label, seq.Unit)
	}

	for i, iv := range seq.Intervals {
		if !finite(iv.Start) || !finite(iv.End) {
			return errors.InvalidSequencef("sequence %q: interval %d has a non-finite bound", seq.Label, i).
				WithDetails(map[string]any{"index": i})
		}
		if iv.End <= iv.Start {
			return errors.InvalidSequencef("sequence %q: interval %d has end %g <= start %g", seq.Label, i, iv.End, iv.Start).
				WithDetails(map[string]any{"index": i})
		}
		if i > 0 && iv.Start < seq.Intervals[i-1].Start {
			return errors.InvalidSequencef("sequence %q: interval %d starts at %g before interval %d at %g",
				seq.Label, i, iv.Start, i-1, seq.Intervals[i-1].Start).
				WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

// NonOverlapping reports whether every consecutive pair satisfies
// prev.End <= next.Start.
func NonOverlapping(intervals []Interval) bool {
	for i := 1; i < len(intervals); i++ {
		if intervals[i-1].End > intervals[i].Start {
			return false
		}
	}
	return true
}

// Gaps returns the active spans between consecutive rests, in quarter units.
// Overlapping rests yield negative gaps.
func Gaps(seq Sequence) []float64 {
	if len(seq.Intervals) < 2 {
		return nil
	}
	gaps := make([]float64, len(seq.Intervals)-1)
	for i := range gaps {
		gaps[i] = seq.Unit.ToQuarter(seq.Intervals[i+1].Start - seq.Intervals[i].End)
	}
	return gaps
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
