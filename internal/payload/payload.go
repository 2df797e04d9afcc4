// Package payload reads the rest-extraction output consumed by the analyzer.
//
// The extractor writes one object per source, keyed by label:
//
//	{
//	  "lumen": {
//	    "rests_eighth": [1.0, 4.0, ...],
//	    "rest_intervals_quarter": [[0.0, 0.5], [2.5, 4.5], ...]
//	  },
//	  "nidi": { ... }
//	}
//
// Intervals are on the quarter-note timeline; rests_eighth repeats their
// durations in eighth units rounded to 6 decimals.
package payload

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/listenupapp/restalign/internal/errors"
	"github.com/listenupapp/restalign/internal/rests"
)

// durationTolerance absorbs the extractor's 6-decimal rounding.
const durationTolerance = 1e-6

// Entry is one source in the payload.
type Entry struct {
	RestsEighth []float64   `json:"rests_eighth"`
	Intervals   [][]float64 `json:"rest_intervals_quarter"`
}

// Payload maps source labels to their extracted rests.
type Payload map[string]Entry

// Read decodes a payload from r.
func Read(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "decode rest payload")
	}
	if len(p) == 0 {
		return nil, errors.Validation("rest payload has no sources")
	}
	return p, nil
}

// ReadFile decodes the payload stored at path.
func ReadFile(path string) (Payload, error) {
	f, err := os.Open(path) //#nosec G304 -- payload path is user input by design
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Labels returns the source labels in sorted order.
func (p Payload) Labels() []string {
	labels := make([]string, 0, len(p))
	for k := range p {
		labels = append(labels, k)
	}
	slices.Sort(labels)
	return labels
}

// Lookup finds an entry by label. An exact key wins; otherwise labels match
// when their slugs do, so "Nidi" finds "nidi".
func (p Payload) Lookup(label string) (string, Entry, bool) {
	if e, ok := p[label]; ok {
		return label, e, true
	}
	want := Slug(label)
	if want == "" {
		return "", Entry{}, false
	}
	for _, k := range p.Labels() {
		if Slug(k) == want {
			return k, p[k], true
		}
	}
	return "", Entry{}, false
}

// Sequence builds the quarter-unit rest sequence for label and checks it
// against the entry's eighth-unit duration list when one is present.
func (p Payload) Sequence(label string) (rests.Sequence, error) {
	key, entry, ok := p.Lookup(label)
	if !ok {
		return rests.Sequence{}, errors.NotFoundf("payload has no source %q (have %s)", label, strings.Join(p.Labels(), ", "))
	}

	seq, err := entry.Sequence(label)
	if err != nil {
		return rests.Sequence{}, fmt.Errorf("source %q: %w", key, err)
	}
	return seq, nil
}

// Sequence converts the entry to a quarter-unit sequence labelled label.
func (e Entry) Sequence(label string) (rests.Sequence, error) {
	if e.Intervals == nil {
		return rests.Sequence{}, errors.Validation("missing rest_intervals_quarter")
	}

	seq := rests.Sequence{
		Label:     label,
		Unit:      rests.UnitQuarter,
		Intervals: make([]rests.Interval, len(e.Intervals)),
	}
	for i, pair := range e.Intervals {
		if len(pair) != 2 {
			return rests.Sequence{}, errors.Validationf("interval %d has %d bounds, want 2", i, len(pair)).
				WithDetails(map[string]any{"index": i})
		}
		seq.Intervals[i] = rests.Interval{Start: pair[0], End: pair[1]}
	}

	if e.RestsEighth != nil {
		if err := e.crossCheck(seq); err != nil {
			return rests.Sequence{}, err
		}
	}
	return seq, nil
}

// crossCheck verifies rests_eighth agrees with the interval durations.
func (e Entry) crossCheck(seq rests.Sequence) error {
	derived := rests.EighthDurations(seq)
	if len(derived) != len(e.RestsEighth) {
		return errors.Validationf("rests_eighth has %d entries but there are %d intervals",
			len(e.RestsEighth), len(derived))
	}
	if m := rests.FirstMismatch(derived, e.RestsEighth, durationTolerance); m.Found() {
		return errors.Validationf("rests_eighth[%d] = %g disagrees with interval duration %g",
			m.Index, m.B, m.A).WithDetails(map[string]any{"index": m.Index})
	}
	return nil
}

// Encode builds a payload entry from a sequence, in the extractor's format.
func Encode(seq rests.Sequence) Entry {
	factor := seq.Unit.Factor(rests.UnitQuarter)
	entry := Entry{
		RestsEighth: rests.EighthDurations(seq),
		Intervals:   make([][]float64, len(seq.Intervals)),
	}
	for i, iv := range seq.Intervals {
		entry.Intervals[i] = []float64{iv.Start * factor, iv.End * factor}
	}
	return entry
}

// Write encodes p as indented JSON.
func Write(w io.Writer, p Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
