// Package rests verifies and compares rest (silence) segmentations of two
// symbolic-music timelines.
package rests

import (
	"fmt"
	"strings"
)

// Unit is the duration unit a sequence is expressed in.
type Unit string

// Supported units. One quarter note spans UnitScale eighth notes.
const (
	UnitEighth  Unit = "eighth"
	UnitQuarter Unit = "quarter"

	UnitScale = 2.0
)

// ParseUnit converts a user-supplied unit name. Accepts the short forms
// used by the extractor payload ("8", "q", ...).
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eighth", "eighths", "8", "8th":
		return UnitEighth, nil
	case "quarter", "quarters", "q", "4", "ql":
		return UnitQuarter, nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}

// Valid reports whether u is a supported unit.
func (u Unit) Valid() bool {
	return u == UnitEighth || u == UnitQuarter
}

// ToQuarter converts a value in unit u to quarter units.
func (u Unit) ToQuarter(v float64) float64 {
	if u == UnitEighth {
		return v / UnitScale
	}
	return v
}

// Factor returns the multiplier that converts a value in unit u into unit to.
func (u Unit) Factor(to Unit) float64 {
	switch {
	case u == to:
		return 1
	case u == UnitQuarter && to == UnitEighth:
		return UnitScale
	default:
		return 1 / UnitScale
	}
}

// Interval is a half-open rest span [Start, End) on the sequence timeline.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// Sequence is an ordered list of rest intervals in a single unit.
type Sequence struct {
	Label     string     `json:"label"`
	Unit      Unit       `json:"unit"`
	Intervals []Interval `json:"intervals"`
}

// Summary holds descriptive statistics over a list of values.
// An empty list reports zeros. Median and StdDev are undefined (NaN) when
// Count <= 1.
type Summary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdev"`
}

// Quartiles are linearly interpolated order statistics.
type Quartiles struct {
	Q25 float64 `json:"q25"`
	Q50 float64 `json:"q50"`
	Q75 float64 `json:"q75"`
}

// AnalysisReport summarizes one rest sequence. Rest statistics are in the
// sequence's native unit; interval extents and gaps are in quarter units.
type AnalysisReport struct {
	Label     string    `json:"label"`
	Unit      Unit      `json:"unit"`
	Rests     Summary   `json:"rests"`
	Quartiles Quartiles `json:"quartiles"`

	MinInterval float64 `json:"min_interval"`
	MaxInterval float64 `json:"max_interval"`

	Gaps Summary `json:"gaps"`

	SortedAndNonOverlapping bool `json:"sorted_and_nonoverlapping"`

	// Durations is the ordered rest duration list in Unit.
	Durations []float64 `json:"durations"`
}

// Mismatch records the first position where two duration lists disagree.
// Index is -1 when the common prefix matches.
type Mismatch struct {
	Index int     `json:"index"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Delta float64 `json:"delta"`
}

// NoMismatch is returned when every element of the common prefix matches.
var NoMismatch = Mismatch{Index: -1}

// Found reports whether m describes an actual mismatch.
func (m Mismatch) Found() bool {
	return m.Index >= 0
}

// ComparisonReport compares two analyzed sequences.
type ComparisonReport struct {
	LabelA string `json:"label_a"`
	LabelB string `json:"label_b"`
	Unit   Unit   `json:"unit"`

	CountA     int `json:"count_a"`
	CountB     int `json:"count_b"`
	CountDelta int `json:"count_delta"`

	TotalA     float64 `json:"total_a"`
	TotalB     float64 `json:"total_b"`
	TotalDelta float64 `json:"total_delta"`

	FirstMismatch Mismatch `json:"first_mismatch"`
	PrefixMatch   int      `json:"prefix_match"`
	CommonLength  int      `json:"common_length"`

	Epsilon   float64 `json:"epsilon"`
	Converted bool    `json:"converted"`
}
