// Package report renders run results as markdown, plain text, or JSON.
//
// Statistics that are undefined (NaN in the analyzer) become nil here so the
// JSON form carries null and the text forms print "n/a".
package report

import (
	"math"
	"time"

	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/rests"
)

// Stats mirrors rests.Summary with undefined values as nil.
type Stats struct {
	Count  int      `json:"count"`
	Total  float64  `json:"total"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	StdDev *float64 `json:"stdev"`
}

// Quartiles mirrors rests.Quartiles.
type Quartiles struct {
	Q25 *float64 `json:"q25"`
	Q50 *float64 `json:"q50"`
	Q75 *float64 `json:"q75"`
}

// Analysis is the serializable form of rests.AnalysisReport.
type Analysis struct {
	Label     string     `json:"label"`
	Unit      rests.Unit `json:"unit"`
	Rests     Stats      `json:"rests"`
	Quartiles Quartiles  `json:"quartiles"`

	MinInterval *float64 `json:"min_interval_quarter"`
	MaxInterval *float64 `json:"max_interval_quarter"`

	Gaps Stats `json:"gaps_quarter"`

	SortedAndNonOverlapping bool      `json:"sorted_and_nonoverlapping"`
	Durations               []float64 `json:"durations"`
}

// Comparison is the serializable form of rests.ComparisonReport.
// FirstMismatch is nil when the common prefix matches.
type Comparison struct {
	LabelA string     `json:"label_a"`
	LabelB string     `json:"label_b"`
	Unit   rests.Unit `json:"unit"`

	CountA     int `json:"count_a"`
	CountB     int `json:"count_b"`
	CountDelta int `json:"count_delta"`

	TotalA     float64 `json:"total_a"`
	TotalB     float64 `json:"total_b"`
	TotalDelta float64 `json:"total_delta"`

	FirstMismatch *rests.Mismatch `json:"first_mismatch"`
	PrefixMatch   int             `json:"prefix_match"`
	CommonLength  int             `json:"common_length"`

	Epsilon   float64 `json:"epsilon"`
	Converted bool    `json:"converted"`
}

// Document is a complete run, ready to render or archive.
type Document struct {
	ID          string    `json:"id,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ElapsedMS   float64   `json:"elapsed_ms"`

	A          Analysis   `json:"a"`
	B          Analysis   `json:"b"`
	Comparison Comparison `json:"comparison"`

	Expected *rests.ExpectedCheck `json:"expected,omitempty"`
}

// FromResult converts a pipeline result.
func FromResult(res *pipeline.Result) Document {
	return Document{
		ID:          res.ID,
		Fingerprint: res.Fingerprint,
		Source:      res.Source,
		CreatedAt:   res.CreatedAt,
		ElapsedMS:   float64(res.Elapsed.Microseconds()) / 1000,
		A:           NewAnalysis(res.A),
		B:           NewAnalysis(res.B),
		Comparison:  NewComparison(res.Comparison),
		Expected:    res.Expected,
	}
}

// NewAnalysis converts an analysis report.
func NewAnalysis(r rests.AnalysisReport) Analysis {
	durations := r.Durations
	if durations == nil {
		durations = []float64{}
	}
	return Analysis{
		Label: r.Label,
		Unit:  r.Unit,
		Rests: newStats(r.Rests),
		Quartiles: Quartiles{
			Q25: defined(r.Quartiles.Q25),
			Q50: defined(r.Quartiles.Q50),
			Q75: defined(r.Quartiles.Q75),
		},
		MinInterval:             defined(r.MinInterval),
		MaxInterval:             defined(r.MaxInterval),
		Gaps:                    newStats(r.Gaps),
		SortedAndNonOverlapping: r.SortedAndNonOverlapping,
		Durations:               durations,
	}
}

// NewComparison converts a comparison report.
func NewComparison(c rests.ComparisonReport) Comparison {
	out := Comparison{
		LabelA:       c.LabelA,
		LabelB:       c.LabelB,
		Unit:         c.Unit,
		CountA:       c.CountA,
		CountB:       c.CountB,
		CountDelta:   c.CountDelta,
		TotalA:       c.TotalA,
		TotalB:       c.TotalB,
		TotalDelta:   c.TotalDelta,
		PrefixMatch:  c.PrefixMatch,
		CommonLength: c.CommonLength,
		Epsilon:      c.Epsilon,
		Converted:    c.Converted,
	}
	if c.FirstMismatch.Found() {
		m := c.FirstMismatch
		out.FirstMismatch = &m
	}
	return out
}

func newStats(s rests.Summary) Stats {
	return Stats{
		Count:  s.Count,
		Total:  s.Total,
		Min:    defined(s.Min),
		Max:    defined(s.Max),
		Mean:   defined(s.Mean),
		Median: defined(s.Median),
		StdDev: defined(s.StdDev),
	}
}

// defined returns nil for NaN or infinite values.
func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
