package models

import "github.com/google/uuid"

// Listing page sizes
const (
	DefaultLogPageSize = 50
	MaxLogPageSize     = 500

	DefaultCampaignPageSize = 20
	MaxCampaignPageSize     = 100
)

// Pagination describes the page of a listing that was returned
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination builds the page metadata for an already normalized page
func NewPagination(page, pageSize int, totalCount int64) Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((totalCount + int64(pageSize) - 1) / int64(pageSize))
	}

	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: pages,
	}
}

func normalizePage(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = defaultSize
	case pageSize > maxSize:
		pageSize = maxSize
	}
	return page, pageSize
}

// Normalized returns f with the page clamped to 1 and up, and the page size
// defaulted and capped
func (f CampaignLogFilter) Normalized() CampaignLogFilter {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize, DefaultLogPageSize, MaxLogPageSize)
	return f
}

// Offset is the number of rows before the filter's page
func (f CampaignLogFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// CampaignFilter holds filtering options for listing campaigns
type CampaignFilter struct {
	InstanceID *uuid.UUID
	Status     CampaignStatus
	Page       int
	PageSize   int
}

// Normalized returns f with the page clamped and the page size defaulted and capped
func (f CampaignFilter) Normalized() CampaignFilter {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize, DefaultCampaignPageSize, MaxCampaignPageSize)
	return f
}

// Offset is the number of rows before the filter's page
func (f CampaignFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
