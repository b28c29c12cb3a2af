package storage

import (
	"errors"

	"github.com/cosmicdatasets/curator/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates that a resource with the same ID already exists.
	ErrConflict = errors.New("resource already exists")
)

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T `json:"items"`

	// Total is the total number of items across all pages.
	Total int `json:"total"`

	// Page is the current page number (1-indexed).
	Page int `json:"page"`

	// PageSize is the number of items per page.
	PageSize int `json:"page_size"`

	// HasMore indicates whether there are more pages available.
	HasMore bool `json:"has_more"`
}

// ListOptions provides pagination and filtering options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 50, max: 500).
	Limit int

	// SortBy specifies the field to sort by (e.g., "created_at", "rating").
	SortBy string

	// SortOrder specifies the sort direction ("asc" or "desc", default: "desc").
	SortOrder string

	// Kind filters by media kind. Empty means all kinds.
	Kind types.AssetKind

	// Processed filters by analysis state when non-nil.
	Processed *bool

	// Flagged filters by the flag when non-nil.
	Flagged *bool

	// MinRating filters to assets rated at least this value. Zero means no filter.
	MinRating int

	// NameContains filters by a case-insensitive substring of the name.
	NameContains string
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	// Whitelist validation for SortBy to prevent SQL injection
	allowedSortFields := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
		"rating":     true,
		"id":         true,
	}

	if !allowedSortFields[o.SortBy] {
		o.SortBy = "created_at"
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}

	if o.Page < 1 {
		o.Page = 1
	}

	if o.Limit < 1 {
		o.Limit = 50
	}

	if o.Limit > 500 {
		o.Limit = 500
	}
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}
