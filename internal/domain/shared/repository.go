package shared

import "strings"

// MaxPageSize caps list queries
const MaxPageSize = 100

// Filter holds paging and ordering shared by list queries
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// Offset returns the row offset for the current page
func (f Filter) Offset() int {
	if f.Page <= 1 || f.PageSize <= 0 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Normalize clamps paging values into a sane range
func (f Filter) Normalize(maxPageSize int) Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if maxPageSize > 0 && f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if strings.ToLower(f.OrderDir) == "asc" {
		f.OrderDir = "asc"
	} else {
		f.OrderDir = "desc"
	}
	return f
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
