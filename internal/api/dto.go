package api

import (
	"github.com/starford/metaedit/internal/export"
	"github.com/starford/metaedit/internal/filter"
	"github.com/starford/metaedit/internal/photoservice"
)

// UpdatePhotoRequest is the request body for editing a photo. Only the
// fields present are changed; an empty string clears a field. people is
// a comma-separated list.
type UpdatePhotoRequest struct {
	People   *string `json:"people,omitempty" example:"Alice, Bob"`
	Location *string `json:"location,omitempty" example:"Paris"`
	Date     *string `json:"date,omitempty" example:"2021-07-14"`
	Group    *string `json:"group,omitempty" example:"holiday"`
	Comment  *string `json:"comment,omitempty" example:"fireworks"`
}

// ExportRequest selects what to export. Empty criteria export every photo.
type ExportRequest struct {
	Criteria filter.Criteria `json:"criteria"`
}

// PhotoDetail is the full photo response type (aliased from the domain layer).
type PhotoDetail = photoservice.PhotoDetail

// PhotoListItem is a lightweight item in a list response (aliased from the domain layer).
type PhotoListItem = photoservice.PhotoListItem

// PhotoListResponse wraps filtered photo listings.
type PhotoListResponse struct {
	Photos []PhotoListItem `json:"photos" validate:"required"`
	Total  int             `json:"total" example:"42" validate:"required"`
}

// ExportResponse is returned after a successful export.
type ExportResponse = export.Report
