package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/restalign/internal/errors"
	"github.com/listenupapp/restalign/internal/rests"
)

const payloadJSON = `{
  "lumen": {"rests_eighth": [1.0, 4.0], "rest_intervals_quarter": [[0.0, 0.5], [1.0, 3.0]]},
  "nidi":  {"rests_eighth": [3.0], "rest_intervals_quarter": [[0.0, 1.5]]}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_PayloadSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rests.json", payloadJSON)
	path := writeFile(t, dir, "run.yaml", `
name: lumen-vs-nidi
payload: rests.json
a:
  label: Lumen
b:
  label: Nidi
  key: nidi
compare:
  epsilon: 1e-6
check_expected: nidi-panel1
`)

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rests.json"), m.Payload)
	assert.Equal(t, []string{path, filepath.Join(dir, "rests.json")}, m.Inputs())

	req, err := m.Request()
	require.NoError(t, err)

	assert.Equal(t, "Lumen", req.A.Label)
	assert.Equal(t, rests.UnitQuarter, req.A.Unit)
	assert.Len(t, req.A.Intervals, 2)
	assert.Equal(t, "Nidi", req.B.Label)
	assert.Equal(t, 1e-6, req.Epsilon)
	assert.Equal(t, "nidi-panel1", req.Reference)
	assert.Equal(t, path, req.Source)
}

func TestParse_InlineSources(t *testing.T) {
	m, err := Parse([]byte(`
name: inline
a:
  label: a
  unit: eighth
  intervals: [[0, 1], [2, 4]]
b:
  label: b
  unit: q
  intervals: [[0, 0.5], [1, 2]]
compare:
  convert_units: true
coalesce: true
`), "")
	require.NoError(t, err)

	req, err := m.Request()
	require.NoError(t, err)
	assert.Equal(t, rests.UnitEighth, req.A.Unit)
	assert.Equal(t, rests.UnitQuarter, req.B.Unit)
	assert.Equal(t, []rests.Interval{{Start: 0, End: 1}, {Start: 2, End: 4}}, req.A.Intervals)
	assert.Equal(t, rests.DefaultEpsilon, req.Epsilon)
	assert.True(t, req.ConvertUnits)
	assert.True(t, req.Coalesce)
	assert.Equal(t, "inline", req.Source)
	assert.Empty(t, m.Inputs())
}

func TestParse_ZeroEpsilonIsKept(t *testing.T) {
	m, err := Parse([]byte("a: {label: a, intervals: []}\nb: {label: b, intervals: []}\ncompare: {epsilon: 0}\n"), "")
	require.NoError(t, err)

	req, err := m.Request()
	require.NoError(t, err)
	assert.Equal(t, 0.0, req.Epsilon)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty", yaml: "  \n", wantErr: "manifest is empty"},
		{name: "unknown field", yaml: "a: {label: a}\nb: {label: b}\npayload: x.json\ncolour: red\n", wantErr: "colour"},
		{name: "missing label", yaml: "payload: x.json\na: {key: lumen}\nb: {label: b}\n", wantErr: "validation failed"},
		{name: "bad unit", yaml: "a: {label: a, unit: bar, intervals: []}\nb: {label: b, intervals: []}\n", wantErr: "validation failed"},
		{name: "bad pair", yaml: "a: {label: a, intervals: [[0, 1, 2]]}\nb: {label: b, intervals: []}\n", wantErr: "validation failed"},
		{name: "negative epsilon", yaml: "payload: x.json\na: {label: a}\nb: {label: b}\ncompare: {epsilon: -1}\n", wantErr: "validation failed"},
		{name: "unknown reference", yaml: "payload: x.json\na: {label: a}\nb: {label: b}\ncheck_expected: other\n", wantErr: "validation failed"},
		{name: "no payload", yaml: "a: {label: a}\nb: {label: b, intervals: []}\n", wantErr: "manifest names no payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequest_MissingPayloadEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rests.json", payloadJSON)

	m, err := Read(strings.NewReader("payload: rests.json\na: {label: Lumen}\nb: {label: Other}\n"), dir)
	require.NoError(t, err)

	_, err = m.Request()
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
