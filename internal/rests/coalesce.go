package rests

import (
	"cmp"
	"math"
	"slices"
)

// CoalesceEpsilon is the slack allowed when deciding two rests touch.
const CoalesceEpsilon = 1e-9

// Coalesce sorts intervals by (start, end) and merges every interval whose
// start lies within eps of the previous end. The input is not modified.
func Coalesce(intervals []Interval, eps float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := slices.Clone(intervals)
	slices.SortFunc(sorted, func(a, b Interval) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End+eps {
			last.End = math.Max(last.End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	return out
}

// CoalesceSequence returns a copy of seq with its intervals coalesced.
func CoalesceSequence(seq Sequence, eps float64) Sequence {
	return Sequence{
		Label:     seq.Label,
		Unit:      seq.Unit,
		Intervals: Coalesce(seq.Intervals, eps),
	}
}

// EighthDurations returns the rest durations of seq in eighth units,
// rounded to 6 decimal places.
func EighthDurations(seq Sequence) []float64 {
	factor := seq.Unit.Factor(UnitEighth)
	out := make([]float64, len(seq.Intervals))
	for i, iv := range seq.Intervals {
		out[i] = round6(iv.Duration() * factor)
	}
	return out
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
