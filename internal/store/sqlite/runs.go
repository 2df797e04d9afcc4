package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/listenupapp/restalign/internal/errors"
	"github.com/listenupapp/restalign/internal/report"
	"github.com/listenupapp/restalign/internal/store"
)

// runColumns is the ordered list of columns selected in run listings.
// Must match the scan order in scanRunSummary.
const runColumns = `id, fingerprint, source, label_a, label_b, count_a, count_b,
	first_mismatch, prefix_match, common_length, created_at`

var _ store.RunStore = (*Store)(nil)

func scanRunSummary(scanner interface{ Scan(dest ...any) error }) (store.RunSummary, error) {
	var (
		r         store.RunSummary
		createdAt string
	)
	err := scanner.Scan(
		&r.ID,
		&r.Fingerprint,
		&r.Source,
		&r.LabelA,
		&r.LabelB,
		&r.CountA,
		&r.CountB,
		&r.FirstMismatch,
		&r.PrefixMatch,
		&r.CommonLength,
		&createdAt,
	)
	if err != nil {
		return store.RunSummary{}, err
	}

	r.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return store.RunSummary{}, fmt.Errorf("parse created_at: %w", err)
	}
	return r, nil
}

// SaveRun inserts a run document.
// Returns errors.ErrAlreadyExists on a duplicate ID.
func (s *Store) SaveRun(ctx context.Context, doc *report.Document) error {
	if doc.ID == "" {
		return errors.Validation("run has no id")
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", doc.ID, err)
	}

	sum := store.Summarize(doc)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, fingerprint, source, label_a, label_b, count_a, count_b,
			first_mismatch, prefix_match, common_length, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID,
		sum.Fingerprint,
		sum.Source,
		sum.LabelA,
		sum.LabelB,
		sum.CountA,
		sum.CountB,
		sum.FirstMismatch,
		sum.PrefixMatch,
		sum.CommonLength,
		string(body),
		formatTime(sum.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.AlreadyExistsf("run %s already archived", doc.ID)
		}
		return fmt.Errorf("insert run %s: %w", doc.ID, err)
	}

	s.logger.Debug("run archived", "run_id", doc.ID, "fingerprint", sum.Fingerprint)
	return nil
}

// GetRun retrieves a run document by ID.
// Returns errors.ErrNotFound if the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*report.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM runs WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	var doc report.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &doc, nil
}

// ListRuns returns runs newest first, optionally filtered by fingerprint.
func (s *Store) ListRuns(ctx context.Context, params store.ListRunsParams) (*store.PaginatedResult[store.RunSummary], error) {
	params.Normalize()

	var (
		where []string
		args  []any
	)
	if params.Fingerprint != "" {
		where = append(where, "fingerprint = ?")
		args = append(args, params.Fingerprint)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM runs` + whereClause(where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	key, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}
	if key != "" {
		createdAt, runID, ok := strings.Cut(key, "|")
		if !ok {
			return nil, errors.Validation("invalid cursor")
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, createdAt, createdAt, runID)
	}

	query := `SELECT ` + runColumns + ` FROM runs` + whereClause(where) +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, params.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	items := []store.RunSummary{}
	for rows.Next() {
		r, err := scanRunSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &store.PaginatedResult[store.RunSummary]{Items: items, Total: total}
	if len(items) > params.Limit {
		result.Items = items[:params.Limit]
		last := result.Items[params.Limit-1]
		result.HasMore = true
		result.NextCursor = store.EncodeCursor(formatTime(last.CreatedAt) + "|" + last.ID)
	}
	return result, nil
}

// DeleteRun removes a run.
// Returns errors.ErrNotFound if the run does not exist.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("run %s not found", id)
	}
	return nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
