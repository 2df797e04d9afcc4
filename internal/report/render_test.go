package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/rests"
)

func sequence(label string, durations ...float64) rests.Sequence {
	seq := rests.Sequence{Label: label, Unit: rests.UnitEighth}
	pos := 0.0
	for _, d := range durations {
		seq.Intervals = append(seq.Intervals, rests.Interval{Start: pos, End: pos + d})
		pos += d + 1
	}
	return seq
}

func result(t *testing.T, a, b rests.Sequence) *pipeline.Result {
	t.Helper()
	ra, err := rests.Analyze(a)
	require.NoError(t, err)
	rb, err := rests.Analyze(b)
	require.NoError(t, err)
	cmp, err := rests.Compare(ra, rb)
	require.NoError(t, err)

	return &pipeline.Result{
		ID:         "run-test",
		CreatedAt:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Elapsed:    1500 * time.Microsecond,
		A:          ra,
		B:          rb,
		Comparison: cmp,
	}
}

func render(t *testing.T, doc Document, f Format) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, doc, f))
	return buf.String()
}

func TestRender_MarkdownMismatch(t *testing.T) {
	doc := FromResult(result(t, sequence("Lumen", 1, 4, 2.5), sequence("Nidi", 3, 2.5)))

	out := render(t, doc, FormatMarkdown)

	assert.Contains(t, out, "# Rest comparison: Lumen vs Nidi")
	assert.Contains(t, out, "- Run: `run-test`")
	assert.Contains(t, out, "| Count | 3 | 2 | 1 |")
	assert.Contains(t, out, "| Total | 7.500 | 5.500 | 2.000 |")
	assert.Contains(t, out, "- First mismatch: index 0 (Lumen 1.000, Nidi 3.000, delta -2.000)")
	assert.Contains(t, out, "- Prefix match: `0/2`")
	assert.Contains(t, out, "- Durations: `1.000 4.000 2.500`")
	assert.Contains(t, out, "- Sorted and non-overlapping: **yes**")
	assert.NotContains(t, out, NoMismatch)
}

func TestRender_MarkdownNoMismatch(t *testing.T) {
	doc := FromResult(result(t, sequence("a", 1, 2, 3), sequence("b", 1, 2)))

	out := render(t, doc, FormatMarkdown)

	assert.Contains(t, out, "- First mismatch: "+NoMismatch)
	assert.Contains(t, out, "- Prefix match: `2/2`")
}

func TestRender_TextFormat(t *testing.T) {
	doc := FromResult(result(t, sequence("a", 1, 2), sequence("b", 1, 2)))
	doc.Expected = &rests.ExpectedCheck{Label: "b", GotCount: 2, ExpectedCount: 18, Compared: 2, MaxPrefixError: 2}

	out := render(t, doc, FormatText)

	assert.Contains(t, out, "Rest comparison: a vs b")
	assert.Contains(t, out, "first mismatch: "+NoMismatch)
	assert.Contains(t, out, "prefix match: 2/2")
	assert.Contains(t, out, "Reference check (b): count 2/18 MISMATCH | max prefix error 2.000 over 2")
}

func TestRender_UndefinedStatistics(t *testing.T) {
	doc := FromResult(result(t, sequence("empty"), sequence("one", 2)))

	out := render(t, doc, FormatMarkdown)
	assert.Contains(t, out, "| Min | 0.000 | 0.000 |")
	assert.Contains(t, out, "| Median | n/a | n/a |")
	assert.Contains(t, out, "- Durations: `(none)`")

	raw := render(t, doc, FormatJSON)
	require.True(t, json.Valid([]byte(raw)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	a := decoded["a"].(map[string]any)
	assert.Equal(t, 0.0, a["rests"].(map[string]any)["min"])
	assert.Nil(t, a["rests"].(map[string]any)["median"])
	assert.Equal(t, []any{}, a["durations"])

	b := decoded["b"].(map[string]any)
	assert.Equal(t, 2.0, b["rests"].(map[string]any)["min"])
	assert.Nil(t, b["rests"].(map[string]any)["median"])
	assert.Nil(t, b["rests"].(map[string]any)["stdev"])

	assert.Nil(t, decoded["comparison"].(map[string]any)["first_mismatch"])
	assert.InDelta(t, 1.5, decoded["elapsed_ms"], 1e-9)
}

func TestRender_JSONMismatch(t *testing.T) {
	doc := FromResult(result(t, sequence("a", 1, 2), sequence("b", 1, 3)))

	var decoded Document
	require.NoError(t, json.Unmarshal([]byte(render(t, doc, FormatJSON)), &decoded))

	require.NotNil(t, decoded.Comparison.FirstMismatch)
	assert.Equal(t, 1, decoded.Comparison.FirstMismatch.Index)
	assert.Equal(t, -1.0, decoded.Comparison.FirstMismatch.Delta)
	assert.True(t, doc.CreatedAt.Equal(decoded.CreatedAt))
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0.000"},
		{in: 1.0 / 3, want: "0.333"},
		{in: -2, want: "-2.000"},
		{in: 1234.5, want: "1234.500"},
		{in: 1234567.25, want: "1234567.250"},
	}

	n := newNumbers()
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, n.f(tt.in))
		})
	}
	assert.Equal(t, "n/a", n.opt(nil))
}

func TestRender_LargeTotalsUngrouped(t *testing.T) {
	doc := FromResult(result(t, sequence("long", 1200, 34.5), sequence("short", 2)))

	md := render(t, doc, FormatMarkdown)
	assert.Contains(t, md, "| Total | 1234.500 | 2.000 | 1232.500 |")
	assert.NotContains(t, md, "1,234")

	text := render(t, doc, FormatText)
	assert.Contains(t, text, "1234.500")
	assert.NotContains(t, text, "1,234")
}

func TestRenderAnalysis(t *testing.T) {
	r, err := rests.Analyze(sequence("solo", 1, 3))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderAnalysis(&buf, NewAnalysis(r), FormatMarkdown))
	assert.Contains(t, buf.String(), "## solo")
	assert.Contains(t, buf.String(), "| Median | 2.000 | n/a |")
	assert.Contains(t, buf.String(), "| Mean | 2.000 | 0.500 |")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "markdown", want: FormatMarkdown},
		{in: "MD", want: FormatMarkdown},
		{in: "", want: FormatMarkdown},
		{in: "txt", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: "pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
