package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/restalign/internal/errors"
	"github.com/listenupapp/restalign/internal/report"
	"github.com/listenupapp/restalign/internal/sse"
	"github.com/listenupapp/restalign/internal/store"
)

func (s *Server) registerRunRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listRuns",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs",
		Summary:     "List archived runs",
		Description: "Returns archived run summaries, newest first",
		Tags:        []string{"Runs"},
	}, s.handleListRuns)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRun",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{id}",
		Summary:     "Get run",
		Description: "Returns the full document of an archived run",
		Tags:        []string{"Runs"},
	}, s.handleGetRun)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRunReport",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{id}/report",
		Summary:     "Render run report",
		Description: "Renders an archived run as markdown, text or JSON",
		Tags:        []string{"Runs"},
	}, s.handleGetRunReport)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteRun",
		Method:        http.MethodDelete,
		Path:          "/api/v1/runs/{id}",
		Summary:       "Delete run",
		Description:   "Removes a run from the archive",
		Tags:          []string{"Runs"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteRun)
}

// ListRunsInput contains parameters for listing runs.
type ListRunsInput struct {
	Limit       int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum runs to return"`
	Cursor      string `query:"cursor" doc:"Cursor from a previous page"`
	Fingerprint string `query:"fingerprint" doc:"Only runs with this input fingerprint"`
}

// ListRunsOutput wraps a page of run summaries for Huma.
type ListRunsOutput struct {
	Body store.PaginatedResult[store.RunSummary]
}

// RunIDInput identifies a run.
type RunIDInput struct {
	ID string `path:"id" doc:"Run ID"`
}

// RunOutput wraps a run document for Huma.
type RunOutput struct {
	Body report.Document
}

// RunReportInput selects a run and report format.
type RunReportInput struct {
	ID     string `path:"id" doc:"Run ID"`
	Format string `query:"format" default:"markdown" enum:"markdown,md,text,txt,json" doc:"Report format"`
}

// RunReportOutput is a rendered report.
type RunReportOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (s *Server) handleListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	page, err := s.runs.ListRuns(ctx, store.ListRunsParams{
		PaginationParams: store.PaginationParams{Limit: input.Limit, Cursor: input.Cursor},
		Fingerprint:      input.Fingerprint,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return &ListRunsOutput{Body: *page}, nil
}

func (s *Server) handleGetRun(ctx context.Context, input *RunIDInput) (*RunOutput, error) {
	doc, err := s.runs.GetRun(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &RunOutput{Body: *doc}, nil
}

func (s *Server) handleGetRunReport(ctx context.Context, input *RunReportInput) (*RunReportOutput, error) {
	format, err := report.ParseFormat(input.Format)
	if err != nil {
		return nil, toAPIError(domainerrors.Validation(err.Error()))
	}

	doc, err := s.runs.GetRun(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, *doc, format); err != nil {
		return nil, toAPIError(domainerrors.Wrap(err, domainerrors.CodeInternal, "render report"))
	}

	return &RunReportOutput{ContentType: contentType(format), Body: buf.Bytes()}, nil
}

func (s *Server) handleDeleteRun(ctx context.Context, input *RunIDInput) (*struct{}, error) {
	doc, err := s.runs.GetRun(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	if err := s.runs.DeleteRun(ctx, input.ID); err != nil {
		return nil, toAPIError(err)
	}
	s.emit(sse.NewRunDeletedEvent(doc.ID, doc.Fingerprint))
	return nil, nil
}

func contentType(f report.Format) string {
	switch f {
	case report.FormatJSON:
		return "application/json"
	case report.FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}
