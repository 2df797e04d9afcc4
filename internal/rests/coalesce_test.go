package rests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{name: "empty", in: nil, want: nil},
		{name: "disjoint", in: []Interval{{0, 1}, {2, 3}}, want: []Interval{{0, 1}, {2, 3}}},
		{name: "touching", in: []Interval{{0, 1}, {1, 2}}, want: []Interval{{0, 2}}},
		{name: "overlapping", in: []Interval{{0, 3}, {1, 2}, {2.5, 4}}, want: []Interval{{0, 4}}},
		{name: "unsorted", in: []Interval{{5, 6}, {0, 1}, {0.5, 2}}, want: []Interval{{0, 2}, {5, 6}}},
		{name: "within epsilon", in: []Interval{{0, 1}, {1 + 1e-12, 2}}, want: []Interval{{0, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coalesce(tt.in, CoalesceEpsilon))
		})
	}
}

func TestCoalesce_DoesNotModifyInput(t *testing.T) {
	in := []Interval{{2, 3}, {0, 2.5}}
	_ = Coalesce(in, CoalesceEpsilon)
	assert.Equal(t, []Interval{{2, 3}, {0, 2.5}}, in)
}

func TestCoalesceSequence_RepairsOverlap(t *testing.T) {
	seq := Sequence{Label: "x", Unit: UnitQuarter, Intervals: []Interval{{0, 4}, {2, 6}, {8, 9}}}

	fixed := CoalesceSequence(seq, CoalesceEpsilon)
	report, err := Analyze(fixed)
	require.NoError(t, err)

	assert.Equal(t, "x", fixed.Label)
	assert.True(t, report.SortedAndNonOverlapping)
	assert.Equal(t, []float64{6, 1}, report.Durations)
}

func TestEighthDurations(t *testing.T) {
	quarter := Sequence{Unit: UnitQuarter, Intervals: []Interval{{0, 1.5}, {2, 2.25}, {3, 3 + 1.0/3}}}
	assert.Equal(t, []float64{3, 0.5, 0.666667}, EighthDurations(quarter))

	eighth := Sequence{Unit: UnitEighth, Intervals: []Interval{{0, 3}, {4, 4.5}}}
	assert.Equal(t, []float64{3, 0.5}, EighthDurations(eighth))
}

func TestCheckExpected(t *testing.T) {
	exact := CheckExpected("Nidi", NidiPanel1Eighth, NidiPanel1Eighth)
	assert.True(t, exact.CountMatch)
	assert.Equal(t, 18, exact.Compared)
	assert.Equal(t, 0.0, exact.MaxPrefixError)

	shifted := CheckExpected("Lumen", lumenEighth, NidiPanel1Eighth)
	assert.False(t, shifted.CountMatch)
	assert.Equal(t, 19, shifted.GotCount)
	assert.Equal(t, 18, shifted.ExpectedCount)
	assert.Equal(t, 18, shifted.Compared)
	assert.Equal(t, 3.0, shifted.MaxPrefixError)

	empty := CheckExpected("none", nil, NidiPanel1Eighth)
	assert.Equal(t, 0, empty.Compared)
	assert.Equal(t, 0.0, empty.MaxPrefixError)
}

func TestReference(t *testing.T) {
	ref, ok := Reference("nidi-panel1")
	require.True(t, ok)
	assert.Len(t, ref, 18)

	ref[0] = 99
	assert.Equal(t, 3.0, NidiPanel1Eighth[0])

	_, ok = Reference("unknown")
	assert.False(t, ok)
}
