// Package store defines the run archive and its pagination types.
package store

import (
	"context"
	"time"

	"github.com/listenupapp/restalign/internal/report"
)

// RunSummary is the indexed part of an archived run.
type RunSummary struct {
	ID            string    `json:"id"`
	Fingerprint   string    `json:"fingerprint"`
	Source        string    `json:"source,omitempty"`
	LabelA        string    `json:"label_a"`
	LabelB        string    `json:"label_b"`
	CountA        int       `json:"count_a"`
	CountB        int       `json:"count_b"`
	FirstMismatch int       `json:"first_mismatch"` // -1 when the common prefix matches
	PrefixMatch   int       `json:"prefix_match"`
	CommonLength  int       `json:"common_length"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summarize extracts the indexed fields of doc.
func Summarize(doc *report.Document) RunSummary {
	cmp := doc.Comparison
	mismatch := -1
	if cmp.FirstMismatch != nil {
		mismatch = cmp.FirstMismatch.Index
	}
	return RunSummary{
		ID:            doc.ID,
		Fingerprint:   doc.Fingerprint,
		Source:        doc.Source,
		LabelA:        cmp.LabelA,
		LabelB:        cmp.LabelB,
		CountA:        cmp.CountA,
		CountB:        cmp.CountB,
		FirstMismatch: mismatch,
		PrefixMatch:   cmp.PrefixMatch,
		CommonLength:  cmp.CommonLength,
		CreatedAt:     doc.CreatedAt,
	}
}

// ListRunsParams filters a run listing.
type ListRunsParams struct {
	PaginationParams
	Fingerprint string
}

// RunStore archives run documents.
type RunStore interface {
	// SaveRun stores doc. Returns errors.ErrAlreadyExists if the ID is taken.
	SaveRun(ctx context.Context, doc *report.Document) error
	// GetRun returns the run with the given ID or errors.ErrNotFound.
	GetRun(ctx context.Context, id string) (*report.Document, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, params ListRunsParams) (*PaginatedResult[RunSummary], error)
	// DeleteRun removes a run. Returns errors.ErrNotFound if it does not exist.
	DeleteRun(ctx context.Context, id string) error
}
