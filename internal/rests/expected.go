package rests

import (
	"math"
	"slices"
)

// NidiPanel1Eighth is the reference 18-rest segmentation of Nidi panel 1,
// in eighth units.
var NidiPanel1Eighth = []float64{
	3, 2.5, 1, 3.5, 1, 4, 1.5, 0.5, 1.5, 3, 2.5, 0.5, 3.5, 1, 4, 1.5, 0.5, 0.5,
}

// ExpectedCheck is the result of validating a duration list against a
// reference segmentation.
type ExpectedCheck struct {
	Label          string  `json:"label"`
	GotCount       int     `json:"got_count"`
	ExpectedCount  int     `json:"expected_count"`
	CountMatch     bool    `json:"count_match"`
	Compared       int     `json:"compared"`
	MaxPrefixError float64 `json:"max_prefix_error"`
}

// CheckExpected compares got against expected over their common prefix and
// records the largest absolute error. MaxPrefixError is 0 when nothing is
// compared.
func CheckExpected(label string, got, expected []float64) ExpectedCheck {
	n := min(len(got), len(expected))
	maxErr := 0.0
	for i := range n {
		maxErr = math.Max(maxErr, math.Abs(got[i]-expected[i]))
	}
	return ExpectedCheck{
		Label:          label,
		GotCount:       len(got),
		ExpectedCount:  len(expected),
		CountMatch:     len(got) == len(expected),
		Compared:       n,
		MaxPrefixError: maxErr,
	}
}

// Reference returns a copy of the named built-in reference segmentation.
func Reference(name string) ([]float64, bool) {
	switch name {
	case "nidi-panel1":
		return slices.Clone(NidiPanel1Eighth), true
	default:
		return nil, false
	}
}
