// Package manifest loads YAML run manifests.
//
// A manifest names the two sequences to compare and the comparison options:
//
//	name: lumen-vs-nidi
//	payload: rests.json        # resolved relative to the manifest
//	a:
//	  label: Lumen
//	  key: lumen               # payload entry; defaults to label
//	b:
//	  label: Nidi
//	compare:
//	  epsilon: 1e-9
//	  convert_units: false
//	coalesce: false
//	check_expected: nidi-panel1
//
// A source may instead carry its intervals inline:
//
//	b:
//	  label: Nidi
//	  unit: eighth
//	  intervals: [[0, 3], [4, 6.5]]
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/listenupapp/restalign/internal/errors"
	"github.com/listenupapp/restalign/internal/payload"
	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/rests"
	"github.com/listenupapp/restalign/internal/validation"
)

// Source describes one side of the comparison.
type Source struct {
	Label     string      `yaml:"label" validate:"required"`
	Key       string      `yaml:"key,omitempty"`
	Unit      string      `yaml:"unit,omitempty" validate:"omitempty,restunit"`
	Intervals [][]float64 `yaml:"intervals,omitempty" validate:"omitempty,dive,len=2"`
}

// Inline reports whether the source carries its own intervals.
func (s Source) Inline() bool {
	return s.Intervals != nil
}

// CompareSettings holds comparator options. A nil Epsilon means the default.
type CompareSettings struct {
	Epsilon      *float64 `yaml:"epsilon,omitempty" validate:"omitempty,gte=0"`
	ConvertUnits bool     `yaml:"convert_units,omitempty"`
}

// Manifest is a parsed run manifest.
type Manifest struct {
	Name          string          `yaml:"name,omitempty"`
	Payload       string          `yaml:"payload,omitempty"`
	A             Source          `yaml:"a"`
	B             Source          `yaml:"b"`
	Compare       CompareSettings `yaml:"compare,omitempty"`
	Coalesce      bool            `yaml:"coalesce,omitempty"`
	CheckExpected string          `yaml:"check_expected,omitempty" validate:"omitempty,oneof=nidi-panel1"`

	// path is where the manifest was loaded from, if anywhere.
	path string
}

// Parse decodes a manifest. Relative payload paths are resolved against
// baseDir.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.Validation("manifest is empty")
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "decode manifest")
	}

	if err := validation.New().Validate(m); err != nil {
		return nil, err
	}
	for _, s := range []struct {
		name string
		src  Source
	}{{"a", m.A}, {"b", m.B}} {
		if !s.src.Inline() && m.Payload == "" {
			return nil, errors.Validationf("source %s (%q) has no intervals and the manifest names no payload", s.name, s.src.Label)
		}
	}

	if m.Payload != "" && !filepath.IsAbs(m.Payload) && baseDir != "" {
		m.Payload = filepath.Join(baseDir, m.Payload)
	}
	return &m, nil
}

// Read decodes a manifest from r.
func Read(r io.Reader, baseDir string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, baseDir)
}

// LoadFile loads the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- manifest path is user input by design
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.path = path
	return m, nil
}

// Path returns the file the manifest was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

// Inputs lists the files a run depends on: the manifest and its payload.
func (m *Manifest) Inputs() []string {
	var files []string
	if m.path != "" {
		files = append(files, m.path)
	}
	if m.Payload != "" {
		files = append(files, m.Payload)
	}
	return files
}

// Sequences resolves both sources.
func (m *Manifest) Sequences() (rests.Sequence, rests.Sequence, error) {
	var p payload.Payload
	if m.Payload != "" && (!m.A.Inline() || !m.B.Inline()) {
		loaded, err := payload.ReadFile(m.Payload)
		if err != nil {
			return rests.Sequence{}, rests.Sequence{}, err
		}
		p = loaded
	}

	a, err := m.A.sequence(p)
	if err != nil {
		return rests.Sequence{}, rests.Sequence{}, err
	}
	b, err := m.B.sequence(p)
	if err != nil {
		return rests.Sequence{}, rests.Sequence{}, err
	}
	return a, b, nil
}

func (s Source) sequence(p payload.Payload) (rests.Sequence, error) {
	if !s.Inline() {
		key := s.Key
		if key == "" {
			key = s.Label
		}
		seq, err := p.Sequence(key)
		if err != nil {
			return rests.Sequence{}, err
		}
		seq.Label = s.Label
		return seq, nil
	}

	unit := rests.UnitQuarter
	if s.Unit != "" {
		u, err := rests.ParseUnit(s.Unit)
		if err != nil {
			return rests.Sequence{}, errors.Validation(err.Error())
		}
		unit = u
	}

	seq := rests.Sequence{Label: s.Label, Unit: unit, Intervals: make([]rests.Interval, len(s.Intervals))}
	for i, pair := range s.Intervals {
		seq.Intervals[i] = rests.Interval{Start: pair[0], End: pair[1]}
	}
	return seq, nil
}

// Request builds the pipeline request the manifest describes.
func (m *Manifest) Request() (pipeline.Request, error) {
	a, b, err := m.Sequences()
	if err != nil {
		return pipeline.Request{}, err
	}

	eps := rests.DefaultEpsilon
	if m.Compare.Epsilon != nil {
		eps = *m.Compare.Epsilon
	}

	source := m.path
	if source == "" {
		source = m.Name
	}
	return pipeline.Request{
		A:            a,
		B:            b,
		Epsilon:      eps,
		ConvertUnits: m.Compare.ConvertUnits,
		Coalesce:     m.Coalesce,
		Reference:    m.CheckExpected,
		Source:       source,
	}, nil
}
