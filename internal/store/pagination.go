package store

import (
	"encoding/base64"
	"fmt"
)

// Pagination limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// PaginationParams contains pagination request parameters.
type PaginationParams struct {
	Limit  int    // items per page (defaults to DefaultLimit, capped at MaxLimit)
	Cursor string // opaque cursor for the next page, empty for the first page
}

// PaginatedResult contains paginated data and metadata.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"` // empty if no more pages
	HasMore    bool   `json:"has_more"`
	Total      int    `json:"total"`
}

// DefaultPaginationParams returns the first page with the default limit.
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{Limit: DefaultLimit}
}

// Normalize clamps Limit into [1, MaxLimit].
func (p *PaginationParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

// EncodeCursor creates an opaque cursor from the last item's sort key.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor decodes a cursor back to a sort key.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}

	return string(decoded), nil
}
