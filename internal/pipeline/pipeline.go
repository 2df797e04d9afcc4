// Package pipeline runs one verification pass: analyze both rest sequences,
// compare them, and optionally check B against a reference segmentation.
package pipeline

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/restalign/internal/errors"
	"github.com/listenupapp/restalign/internal/id"
	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/rests"
)

// Request describes one run.
type Request struct {
	A rests.Sequence
	B rests.Sequence

	// Epsilon is the comparison tolerance. Zero means exact.
	Epsilon      float64
	ConvertUnits bool

	// Coalesce merges touching or overlapping rests before analysis.
	Coalesce bool

	// Reference names a built-in segmentation B's eighth-unit durations are
	// checked against. Empty skips the check.
	Reference string

	// Source records where the inputs came from (file path, "api", ...).
	Source string
}

// Result is the outcome of a run.
type Result struct {
	ID          string
	Fingerprint string
	Source      string
	CreatedAt   time.Time
	Elapsed     time.Duration

	A          rests.AnalysisReport
	B          rests.AnalysisReport
	Comparison rests.ComparisonReport

	Expected *rests.ExpectedCheck
}

// Runner executes runs.
type Runner struct {
	logger *logger.Logger
	now    func() time.Time
}

// NewRunner creates a runner that logs through log.
func NewRunner(log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{logger: log, now: time.Now}
}

// Run analyzes both sequences concurrently, then compares them.
// Analysis errors are returned unchanged so callers can inspect the code.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if math.IsNaN(req.Epsilon) || req.Epsilon < 0 {
		return nil, errors.Validationf("epsilon must be a non-negative number, got %g", req.Epsilon)
	}

	var reference []float64
	if req.Reference != "" {
		ref, ok := rests.Reference(req.Reference)
		if !ok {
			return nil, errors.Validationf("unknown reference segmentation %q", req.Reference)
		}
		reference = ref
	}

	runID, err := id.NewRunID()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate run id")
	}
	log := r.logger.WithRun(runID)
	start := r.now()

	a, b := req.A, req.B
	if req.Coalesce {
		a = rests.CoalesceSequence(a, rests.CoalesceEpsilon)
		b = rests.CoalesceSequence(b, rests.CoalesceEpsilon)
		log.Debug("coalesced rests",
			"label_a", a.Label, "before_a", len(req.A.Intervals), "after_a", len(a.Intervals),
			"label_b", b.Label, "before_b", len(req.B.Intervals), "after_b", len(b.Intervals))
	}

	res := &Result{
		ID:          runID,
		Fingerprint: Fingerprint(req),
		Source:      req.Source,
		CreatedAt:   start.UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	analyze := func(seq rests.Sequence, out *rests.AnalysisReport) func() error {
		return func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := rests.Analyze(seq)
			if err != nil {
				log.WithSequence(seq.Label).Warn("sequence rejected", "error", err)
				return err
			}
			*out = report
			return nil
		}
	}
	g.Go(analyze(a, &res.A))
	g.Go(analyze(b, &res.B))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opts := []rests.CompareOption{rests.WithEpsilon(req.Epsilon)}
	if req.ConvertUnits {
		opts = append(opts, rests.WithUnitConversion())
	}
	res.Comparison, err = rests.Compare(res.A, res.B, opts...)
	if err != nil {
		return nil, err
	}

	if reference != nil {
		check := rests.CheckExpected(b.Label, rests.EighthDurations(b), reference)
		res.Expected = &check
		if !check.CountMatch || check.MaxPrefixError > rests.CoalesceEpsilon {
			log.Warn("sequence deviates from reference",
				"reference", req.Reference,
				"got", check.GotCount,
				"expected", check.ExpectedCount,
				"max_prefix_error", check.MaxPrefixError)
		}
	}

	res.Elapsed = r.now().Sub(start)
	log.Info("run complete",
		"label_a", res.A.Label,
		"label_b", res.B.Label,
		"count_a", res.Comparison.CountA,
		"count_b", res.Comparison.CountB,
		"first_mismatch", res.Comparison.FirstMismatch.Index,
		"prefix_match", res.Comparison.PrefixMatch,
		"elapsed", res.Elapsed)

	return res, nil
}
