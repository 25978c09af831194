package models

import "strings"

const MaxPageSize = 10

type PaginationFilter struct {
	Page    int    `json:"page"`
	Size    int    `json:"size"`
	TakeAll bool   `json:"take_all"`
	Order   string `json:"order"`
	Search  string `json:"search"`
}

func NewPaginationFilter() PaginationFilter {
	return PaginationFilter{Page: 1, Size: MaxPageSize, TakeAll: true, Order: "ASC"}
}

// Normalize clamps the filter into its allowed range.
func (f PaginationFilter) Normalize() PaginationFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size < 1 || f.Size > MaxPageSize {
		f.Size = MaxPageSize
	}
	if strings.EqualFold(f.Order, "DESC") {
		f.Order = "DESC"
	} else {
		f.Order = "ASC"
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// OrderExpr returns the ORDER BY term for field in the filter order.
func (f PaginationFilter) OrderExpr(field string) string {
	return field + " " + f.Order
}

type Metadata struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	PageSize    int  `json:"page_size"`
	TotalCount  int  `json:"total_count"`
	TakeAll     bool `json:"take_all"`
	HasPrevious bool `json:"has_previous"`
	HasNext     bool `json:"has_next"`
}

func NewMetadata(totalCount int, f PaginationFilter) Metadata {
	if f.TakeAll {
		return Metadata{CurrentPage: 1, TotalPages: 1, PageSize: totalCount, TotalCount: totalCount, TakeAll: true}
	}

	pages := (totalCount + f.Size - 1) / f.Size
	return Metadata{
		CurrentPage: f.Page,
		TotalPages:  pages,
		PageSize:    f.Size,
		TotalCount:  totalCount,
		HasPrevious: f.Page > 1,
		HasNext:     f.Page < pages,
	}
}

type PagedPayments struct {
	Items    []*Payment `json:"items"`
	Metadata Metadata   `json:"metadata"`
}
