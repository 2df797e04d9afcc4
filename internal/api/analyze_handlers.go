package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/restalign/internal/errors"
	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/report"
	"github.com/listenupapp/restalign/internal/rests"
	"github.com/listenupapp/restalign/internal/sse"
	"github.com/listenupapp/restalign/internal/store"
)

// sourceAPI marks runs submitted over HTTP.
const sourceAPI = "api"

func (s *Server) registerAnalyzeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "analyzeSequence",
		Method:      http.MethodPost,
		Path:        "/api/v1/analyze",
		Summary:     "Analyze a rest sequence",
		Description: "Validates one rest sequence and returns its duration and gap statistics",
		Tags:        []string{"Rests"},
	}, s.handleAnalyze)

	huma.Register(s.api, huma.Operation{
		OperationID: "compareSequences",
		Method:      http.MethodPost,
		Path:        "/api/v1/compare",
		Summary:     "Compare two rest sequences",
		Description: "Analyzes both sequences, compares their duration lists and archives the run when an archive is configured",
		Tags:        []string{"Rests"},
	}, s.handleCompare)
}

// SequenceRequest is one rest sequence in a request body.
type SequenceRequest struct {
	Label     string      `json:"label" validate:"required" doc:"Sequence label" example:"Lumen"`
	Unit      string      `json:"unit,omitempty" validate:"omitempty,restunit" doc:"Duration unit of the intervals: eighth or quarter (default quarter)"`
	Intervals [][]float64 `json:"intervals" validate:"dive,len=2" doc:"Rest intervals as [start, end] pairs, sorted by start"`
}

func (r SequenceRequest) sequence() (rests.Sequence, error) {
	unit := rests.UnitQuarter
	if r.Unit != "" {
		u, err := rests.ParseUnit(r.Unit)
		if err != nil {
			return rests.Sequence{}, domainerrors.Validation(err.Error())
		}
		unit = u
	}

	seq := rests.Sequence{Label: r.Label, Unit: unit, Intervals: make([]rests.Interval, len(r.Intervals))}
	for i, pair := range r.Intervals {
		seq.Intervals[i] = rests.Interval{Start: pair[0], End: pair[1]}
	}
	return seq, nil
}

// AnalyzeInput is the request for a single-sequence analysis.
type AnalyzeInput struct {
	Coalesce bool `query:"coalesce" doc:"Merge touching or overlapping rests before analysis"`
	Body     SequenceRequest
}

// AnalyzeOutput wraps the analysis for Huma.
type AnalyzeOutput struct {
	Body report.Analysis
}

func (s *Server) handleAnalyze(_ context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, toAPIError(err)
	}

	seq, err := input.Body.sequence()
	if err != nil {
		return nil, toAPIError(err)
	}
	if input.Coalesce {
		seq = rests.CoalesceSequence(seq, rests.CoalesceEpsilon)
	}

	r, err := rests.Analyze(seq)
	if err != nil {
		return nil, toAPIError(err)
	}

	return &AnalyzeOutput{Body: report.NewAnalysis(r)}, nil
}

// CompareRequest is the request body for a comparison run.
type CompareRequest struct {
	A             SequenceRequest `json:"a" doc:"First sequence"`
	B             SequenceRequest `json:"b" doc:"Second sequence"`
	Epsilon       *float64        `json:"epsilon,omitempty" validate:"omitempty,gte=0" doc:"Tolerance for duration equality (default 1e-9, 0 means exact)"`
	ConvertUnits  bool            `json:"convert_units,omitempty" doc:"Allow comparing sequences in different units"`
	Coalesce      bool            `json:"coalesce,omitempty" doc:"Merge touching or overlapping rests before analysis"`
	CheckExpected string          `json:"check_expected,omitempty" validate:"omitempty,oneof=nidi-panel1" doc:"Reference segmentation to check sequence B against"`
}

// CompareInput wraps the comparison request for Huma.
type CompareInput struct {
	Body CompareRequest
}

// CompareOutput returns the run document.
type CompareOutput struct {
	Location string `header:"Location" doc:"Archived run URL, when archived"`
	Body     report.Document
}

func (s *Server) handleCompare(ctx context.Context, input *CompareInput) (*CompareOutput, error) {
	body := input.Body
	if err := s.validator.Validate(body); err != nil {
		return nil, toAPIError(err)
	}

	a, err := body.A.sequence()
	if err != nil {
		return nil, toAPIError(err)
	}
	b, err := body.B.sequence()
	if err != nil {
		return nil, toAPIError(err)
	}

	eps := rests.DefaultEpsilon
	if body.Epsilon != nil {
		eps = *body.Epsilon
	}

	res, err := s.runner.Run(ctx, pipeline.Request{
		A:            a,
		B:            b,
		Epsilon:      eps,
		ConvertUnits: body.ConvertUnits,
		Coalesce:     body.Coalesce,
		Reference:    body.CheckExpected,
		Source:       sourceAPI,
	})
	if err != nil {
		return nil, toAPIError(err)
	}

	doc := report.FromResult(res)
	out := &CompareOutput{Body: doc}

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, &doc); err != nil {
			s.logger.WithRun(doc.ID).Error("archive run failed", "error", err)
			return nil, toAPIError(err)
		}
		out.Location = "/api/v1/runs/" + doc.ID
	}
	s.emit(sse.NewRunCompletedEvent(store.Summarize(&doc)))

	return out, nil
}
