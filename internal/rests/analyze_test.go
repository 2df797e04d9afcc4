package rests

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/restalign/internal/errors"
)

var (
	lumenEighth = []float64{1.0, 4.0, 2.5, 1.0, 3.5, 1.0, 4.0, 1.5, 0.5, 1.5, 3.0, 2.5, 0.5, 3.5, 1.0, 4.0, 1.5, 0.5, 2.5}
	nidiEighth  = NidiPanel1Eighth
)

// sequenceOf lays durations out back to back with a fixed gap between rests.
func sequenceOf(label string, unit Unit, durations []float64, gap float64) Sequence {
	seq := Sequence{Label: label, Unit: unit}
	pos := 0.0
	for _, d := range durations {
		seq.Intervals = append(seq.Intervals, Interval{Start: pos, End: pos + d})
		pos += d + gap
	}
	return seq
}

func TestAnalyze_SortedSequence(t *testing.T) {
	seq := sequenceOf("lumen", UnitEighth, lumenEighth, 2)

	report, err := Analyze(seq)
	require.NoError(t, err)

	assert.Equal(t, "lumen", report.Label)
	assert.Equal(t, UnitEighth, report.Unit)
	assert.True(t, report.SortedAndNonOverlapping)
	assert.Equal(t, 19, report.Rests.Count)
	assert.InDelta(t, 39.5, report.Rests.Total, 1e-9)
	assert.Equal(t, 0.5, report.Rests.Min)
	assert.Equal(t, 4.0, report.Rests.Max)
	assert.InDelta(t, 39.5/19, report.Rests.Mean, 1e-12)
	assert.Equal(t, 1.5, report.Rests.Median)
	assert.Equal(t, lumenEighth, report.Durations)

	// Interval extents are reported in quarter units.
	assert.Equal(t, 0.25, report.MinInterval)
	assert.Equal(t, 2.0, report.MaxInterval)

	// A gap of 2 eighths is 1 quarter.
	assert.Equal(t, 18, report.Gaps.Count)
	assert.Equal(t, 1.0, report.Gaps.Min)
	assert.Equal(t, 1.0, report.Gaps.Max)
	assert.Equal(t, 1.0, report.Gaps.Mean)
	assert.Equal(t, 1.0, report.Gaps.Median)
}

func TestAnalyze_TotalMatchesSum(t *testing.T) {
	seq := sequenceOf("nidi", UnitEighth, nidiEighth, 0.5)

	report, err := Analyze(seq)
	require.NoError(t, err)

	var sum float64
	for _, d := range report.Durations {
		sum += d
	}
	assert.InDelta(t, sum, report.Rests.Total, 1e-9)
	assert.Equal(t, len(report.Durations), report.Rests.Count)
	assert.InDelta(t, 35.5, report.Rests.Total, 1e-9)
}

func TestAnalyze_GapCount(t *testing.T) {
	tests := []struct {
		name      string
		durations []float64
		wantGaps  int
	}{
		{name: "empty", durations: nil, wantGaps: 0},
		{name: "single", durations: []float64{1}, wantGaps: 0},
		{name: "pair", durations: []float64{1, 2}, wantGaps: 1},
		{name: "many", durations: []float64{1, 2, 3, 4, 5}, wantGaps: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Analyze(sequenceOf(tt.name, UnitQuarter, tt.durations, 1))
			require.NoError(t, err)
			assert.Equal(t, len(tt.durations), report.Rests.Count)
			assert.Equal(t, tt.wantGaps, report.Gaps.Count)
		})
	}
}

func TestAnalyze_GapsInQuarterUnits(t *testing.T) {
	eighth := Sequence{Unit: UnitEighth, Intervals: []Interval{{0, 2}, {4, 6}, {9, 10}}}
	quarter := Sequence{Unit: UnitQuarter, Intervals: []Interval{{0, 1}, {2, 3}, {4.5, 5}}}

	re, err := Analyze(eighth)
	require.NoError(t, err)
	rq, err := Analyze(quarter)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1.5}, Gaps(eighth))
	assert.Equal(t, []float64{1, 1.5}, Gaps(quarter))
	assert.Equal(t, re.Gaps, rq.Gaps)
}

func TestAnalyze_OverlapIsFlaggedNotRejected(t *testing.T) {
	seq := Sequence{
		Label:     "overlap",
		Unit:      UnitQuarter,
		Intervals: []Interval{{0, 4}, {2, 6}, {6, 7}},
	}

	report, err := Analyze(seq)
	require.NoError(t, err)

	assert.False(t, report.SortedAndNonOverlapping)
	assert.Equal(t, 3, report.Rests.Count)
	assert.Equal(t, -2.0, report.Gaps.Min)
}

func TestAnalyze_TouchingIntervalsAreNonOverlapping(t *testing.T) {
	seq := Sequence{Unit: UnitQuarter, Intervals: []Interval{{0, 1}, {1, 2}, {2, 3}}}

	report, err := Analyze(seq)
	require.NoError(t, err)
	assert.True(t, report.SortedAndNonOverlapping)
	assert.Equal(t, 0.0, report.Gaps.Max)
}

func TestAnalyze_InvalidSequence(t *testing.T) {
	tests := []struct {
		name string
		seq  Sequence
	}{
		{
			name: "zero length",
			seq:  Sequence{Unit: UnitQuarter, Intervals: []Interval{{0, 1}, {2, 2}}},
		},
		{
			name: "negative length",
			seq:  Sequence{Unit: UnitQuarter, Intervals: []Interval{{3, 1}}},
		},
		{
			name: "descending start",
			seq:  Sequence{Unit: UnitQuarter, Intervals: []Interval{{4, 5}, {0, 1}}},
		},
		{
			name: "non-finite",
			seq:  Sequence{Unit: UnitQuarter, Intervals: []Interval{{0, math.Inf(1)}}},
		},
		{
			name: "unknown unit",
			seq:  Sequence{Unit: "sixteenth", Intervals: []Interval{{0, 1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(tt.seq)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidSequence), "got %v", err)
			assert.Equal(t, errors.CodeInvalidSequence, errors.GetCode(err))
		})
	}
}

func TestAnalyze_PermutationBreakingOrderIsRejected(t *testing.T) {
	seq := sequenceOf("lumen", UnitEighth, lumenEighth, 1)

	for i := 0; i+1 < len(seq.Intervals); i++ {
		permuted := Sequence{Unit: seq.Unit, Intervals: append([]Interval(nil), seq.Intervals...)}
		permuted.Intervals[i], permuted.Intervals[i+1] = permuted.Intervals[i+1], permuted.Intervals[i]

		_, err := Analyze(permuted)
		assert.True(t, errors.Is(err, errors.ErrInvalidSequence), "swap at %d: got %v", i, err)
	}
}

func TestAnalyze_InvalidSequenceCarriesIndex(t *testing.T) {
	seq := Sequence{Unit: UnitQuarter, Intervals: []Interval{{0, 1}, {2, 3}, {5, 4}}}

	_, err := Analyze(seq)

	var domainErr *errors.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, map[string]any{"index": 2}, domainErr.Details)
}

func TestAnalyze_EmptySequence(t *testing.T) {
	report, err := Analyze(Sequence{Label: "empty", Unit: UnitEighth})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Rests.Count)
	assert.Equal(t, 0.0, report.Rests.Total)
	assert.Equal(t, 0.0, report.Rests.Mean)
	assert.Equal(t, 0.0, report.Rests.Min)
	assert.Equal(t, 0.0, report.Rests.Max)
	assert.True(t, math.IsNaN(report.Rests.Median))
	assert.True(t, math.IsNaN(report.Rests.StdDev))
	assert.Equal(t, Quartiles{}, report.Quartiles)
	assert.Equal(t, 0.0, report.MinInterval)
	assert.Equal(t, 0.0, report.MaxInterval)
	assert.Equal(t, 0, report.Gaps.Count)
	assert.Equal(t, 0.0, report.Gaps.Mean)
	assert.True(t, math.IsNaN(report.Gaps.Median))
	assert.True(t, report.SortedAndNonOverlapping)
	assert.Empty(t, report.Durations)
}

func TestAnalyze_SingleRest(t *testing.T) {
	report, err := Analyze(Sequence{Unit: UnitQuarter, Intervals: []Interval{{1, 3}}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Rests.Count)
	assert.Equal(t, 2.0, report.Rests.Mean)
	assert.Equal(t, 2.0, report.Rests.Min)
	assert.Equal(t, 2.0, report.Rests.Max)
	assert.True(t, math.IsNaN(report.Rests.Median))
	assert.True(t, math.IsNaN(report.Rests.StdDev))
	assert.Equal(t, Quartiles{Q25: 2, Q50: 2, Q75: 2}, report.Quartiles)
	assert.Equal(t, 2.0, report.MinInterval)
	assert.Equal(t, 0, report.Gaps.Count)
	assert.True(t, math.IsNaN(report.Gaps.Median))
}

func TestAnalyze_QuartilesOrdered(t *testing.T) {
	for _, durations := range [][]float64{lumenEighth, nidiEighth, {5}, {3, 1}, {0.5, 0.5, 0.5}} {
		report, err := Analyze(sequenceOf("q", UnitEighth, durations, 1))
		require.NoError(t, err)

		q := report.Quartiles
		assert.LessOrEqual(t, q.Q25, q.Q50)
		assert.LessOrEqual(t, q.Q50, q.Q75)
		if report.Rests.Count > 1 {
			assert.Equal(t, report.Rests.Median, q.Q50)
		}
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	seq := sequenceOf("lumen", UnitEighth, lumenEighth, 1.5)

	first, err := Analyze(seq)
	require.NoError(t, err)
	second, err := Analyze(seq)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, math.Float64bits(first.Rests.StdDev), math.Float64bits(second.Rests.StdDev))
	assert.Equal(t, math.Float64bits(first.Quartiles.Q25), math.Float64bits(second.Quartiles.Q25))
}

func TestAnalyze_DoesNotAliasInput(t *testing.T) {
	seq := sequenceOf("lumen", UnitEighth, []float64{1, 2}, 1)

	report, err := Analyze(seq)
	require.NoError(t, err)

	seq.Intervals[0].End = 10
	assert.Equal(t, []float64{1, 2}, report.Durations)
}
