package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/listenupapp/restalign/internal/rests"
)

// Format selects the report output.
type Format string

// Supported formats.
const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// NoMismatch is printed when the common prefix matches.
const NoMismatch = "no mismatch in common prefix"

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Render writes doc to w in the given format.
func Render(w io.Writer, doc Document, f Format) error {
	var s string
	switch f {
	case FormatJSON:
		buf, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		s = string(buf) + "\n"
	case FormatText:
		s = renderText(doc)
	default:
		s = renderMarkdown(doc)
	}
	_, err := io.WriteString(w, s)
	return err
}

// numbers formats durations to exactly three decimals with a '.' decimal
// point and no grouping, so reports stay machine-readable.
type numbers struct {
	p *message.Printer
}

func newNumbers() numbers {
	return numbers{p: message.NewPrinter(language.English)}
}

func (n numbers) f(v float64) string {
	return n.p.Sprintf("%v", number.Decimal(v, number.Scale(3), number.NoSeparator()))
}

func (n numbers) opt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return n.f(*v)
}

func (n numbers) list(vs []float64) string {
	if len(vs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = n.f(v)
	}
	return strings.Join(parts, " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func renderMarkdown(doc Document) string {
	n := newNumbers()
	var b strings.Builder
	cmp := doc.Comparison

	fmt.Fprintf(&b, "# Rest comparison: %s vs %s\n\n", cmp.LabelA, cmp.LabelB)
	if doc.ID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", doc.ID)
	}
	if !doc.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- When: `%s`\n", doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	if doc.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", doc.Source)
	}
	if doc.Fingerprint != "" {
		fmt.Fprintf(&b, "- Fingerprint: `%s`\n", doc.Fingerprint)
	}
	fmt.Fprintf(&b, "- Epsilon: `%g`\n\n", cmp.Epsilon)

	for _, a := range []Analysis{doc.A, doc.B} {
		markdownAnalysis(&b, n, a)
	}

	fmt.Fprintf(&b, "## Comparison (%s)\n\n", unitName(cmp.Unit, cmp.Converted))
	fmt.Fprintf(&b, "| | %s | %s | Delta |\n|---|---:|---:|---:|\n", cmp.LabelA, cmp.LabelB)
	fmt.Fprintf(&b, "| Count | %d | %d | %d |\n", cmp.CountA, cmp.CountB, cmp.CountDelta)
	fmt.Fprintf(&b, "| Total | %s | %s | %s |\n\n", n.f(cmp.TotalA), n.f(cmp.TotalB), n.f(cmp.TotalDelta))
	fmt.Fprintf(&b, "- First mismatch: %s\n", mismatchLine(n, cmp))
	fmt.Fprintf(&b, "- Prefix match: `%d/%d`\n", cmp.PrefixMatch, cmp.CommonLength)

	if doc.Expected != nil {
		b.WriteString("\n")
		markdownExpected(&b, n, doc.Expected)
	}
	return b.String()
}

func markdownAnalysis(b *strings.Builder, n numbers, a Analysis) {
	fmt.Fprintf(b, "## %s\n\n", a.Label)
	fmt.Fprintf(b, "| Statistic | Rests (%s) | Gaps (quarter) |\n|---|---:|---:|\n", a.Unit)
	fmt.Fprintf(b, "| Count | %d | %d |\n", a.Rests.Count, a.Gaps.Count)
	fmt.Fprintf(b, "| Total | %s | %s |\n", n.f(a.Rests.Total), n.f(a.Gaps.Total))
	fmt.Fprintf(b, "| Min | %s | %s |\n", n.opt(a.Rests.Min), n.opt(a.Gaps.Min))
	fmt.Fprintf(b, "| Max | %s | %s |\n", n.opt(a.Rests.Max), n.opt(a.Gaps.Max))
	fmt.Fprintf(b, "| Mean | %s | %s |\n", n.opt(a.Rests.Mean), n.opt(a.Gaps.Mean))
	fmt.Fprintf(b, "| Median | %s | %s |\n", n.opt(a.Rests.Median), n.opt(a.Gaps.Median))
	fmt.Fprintf(b, "| Std dev | %s | %s |\n\n", n.opt(a.Rests.StdDev), n.opt(a.Gaps.StdDev))

	fmt.Fprintf(b, "- Quartiles: `%s / %s / %s`\n",
		n.opt(a.Quartiles.Q25), n.opt(a.Quartiles.Q50), n.opt(a.Quartiles.Q75))
	fmt.Fprintf(b, "- Interval extent (quarter): `%s .. %s`\n", n.opt(a.MinInterval), n.opt(a.MaxInterval))
	fmt.Fprintf(b, "- Sorted and non-overlapping: **%s**\n", yesNo(a.SortedAndNonOverlapping))
	fmt.Fprintf(b, "- Durations: `%s`\n\n", n.list(a.Durations))
}

func markdownExpected(b *strings.Builder, n numbers, e *rests.ExpectedCheck) {
	fmt.Fprintf(b, "## Reference check: %s\n\n", e.Label)
	fmt.Fprintf(b, "- Count: `%d` (expected `%d`) **%s**\n", e.GotCount, e.ExpectedCount, passFail(e.CountMatch))
	fmt.Fprintf(b, "- Max prefix error (eighth): `%s` over `%d` rests\n", n.f(e.MaxPrefixError), e.Compared)
}

func renderText(doc Document) string {
	n := newNumbers()
	var b strings.Builder
	cmp := doc.Comparison

	fmt.Fprintf(&b, "Rest comparison: %s vs %s\n", cmp.LabelA, cmp.LabelB)
	if doc.ID != "" {
		fmt.Fprintf(&b, "Run: %s\n", doc.ID)
	}
	fmt.Fprintf(&b, "Epsilon: %g\n\n", cmp.Epsilon)

	for _, a := range []Analysis{doc.A, doc.B} {
		fmt.Fprintf(&b, "%s (%s):\n", a.Label, a.Unit)
		fmt.Fprintf(&b, "  rests: count %d | total %s | min %s | max %s | mean %s | median %s | std %s\n",
			a.Rests.Count, n.f(a.Rests.Total), n.opt(a.Rests.Min), n.opt(a.Rests.Max),
			n.opt(a.Rests.Mean), n.opt(a.Rests.Median), n.opt(a.Rests.StdDev))
		fmt.Fprintf(&b, "  quartiles: %s / %s / %s\n",
			n.opt(a.Quartiles.Q25), n.opt(a.Quartiles.Q50), n.opt(a.Quartiles.Q75))
		fmt.Fprintf(&b, "  gaps (quarter): count %d | min %s | max %s | mean %s\n",
			a.Gaps.Count, n.opt(a.Gaps.Min), n.opt(a.Gaps.Max), n.opt(a.Gaps.Mean))
		fmt.Fprintf(&b, "  sorted and non-overlapping: %s\n", yesNo(a.SortedAndNonOverlapping))
		fmt.Fprintf(&b, "  durations: %s\n\n", n.list(a.Durations))
	}

	fmt.Fprintf(&b, "Comparison (%s):\n", unitName(cmp.Unit, cmp.Converted))
	fmt.Fprintf(&b, "  count: %d vs %d (delta %d)\n", cmp.CountA, cmp.CountB, cmp.CountDelta)
	fmt.Fprintf(&b, "  total: %s vs %s (delta %s)\n", n.f(cmp.TotalA), n.f(cmp.TotalB), n.f(cmp.TotalDelta))
	fmt.Fprintf(&b, "  first mismatch: %s\n", mismatchLine(n, cmp))
	fmt.Fprintf(&b, "  prefix match: %d/%d\n", cmp.PrefixMatch, cmp.CommonLength)

	if e := doc.Expected; e != nil {
		fmt.Fprintf(&b, "\nReference check (%s): count %d/%d %s | max prefix error %s over %d\n",
			e.Label, e.GotCount, e.ExpectedCount, passFail(e.CountMatch), n.f(e.MaxPrefixError), e.Compared)
	}
	return b.String()
}

// RenderAnalysis writes a single-sequence report.
func RenderAnalysis(w io.Writer, a Analysis, f Format) error {
	var s string
	switch f {
	case FormatJSON:
		buf, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return fmt.Errorf("encode analysis: %w", err)
		}
		s = string(buf) + "\n"
	default:
		var b strings.Builder
		markdownAnalysis(&b, newNumbers(), a)
		s = b.String()
	}
	_, err := io.WriteString(w, s)
	return err
}

func mismatchLine(n numbers, cmp Comparison) string {
	m := cmp.FirstMismatch
	if m == nil {
		return NoMismatch
	}
	return fmt.Sprintf("index %d (%s %s, %s %s, delta %s)",
		m.Index, cmp.LabelA, n.f(m.A), cmp.LabelB, n.f(m.B), n.f(m.Delta))
}

func unitName(u rests.Unit, converted bool) string {
	if converted {
		return string(u) + " units, converted"
	}
	return string(u) + " units"
}

func passFail(ok bool) string {
	if ok {
		return "ok"
	}
	return "MISMATCH"
}
