package model

import (
	"math"
	"time"
)

// Region is the cultural region a tale comes from
type Region string

const (
	RegionHimalayan       Region = "Himalayan"
	RegionKathmanduValley Region = "Kathmandu Valley"
	RegionTerai           Region = "Terai"
	RegionMidHills        Region = "Mid-Hills"
)

// Regions lists every valid region in display order.
var Regions = []Region{RegionHimalayan, RegionKathmanduValley, RegionTerai, RegionMidHills}

// IsValid returns true if the region is one of the known regions
func (r Region) IsValid() bool {
	switch r {
	case RegionHimalayan, RegionKathmanduValley, RegionTerai, RegionMidHills:
		return true
	default:
		return false
	}
}

// Field limits for tales
const (
	MaxTaleTitleLength       = 100
	MaxTaleStoryLength       = 5000
	MaxCulturalContextLength = 1000
)

// Pagination bounds for public listings
const (
	DefaultPageSize = 12
	MaxPageSize     = 100

	// MaxPage keeps the skip count representable at any page size.
	MaxPage = math.MaxInt / MaxPageSize
)

// AuthorSummary is the reduced author projection embedded in a tale.
// List views fill only Name.
type AuthorSummary struct {
	Name        string  `json:"name"`
	Email       string  `json:"email,omitempty"`
	Institution *string `json:"institution,omitempty"`
}

// Tale represents a story record
type Tale struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Story           string         `json:"story"`
	CulturalContext *string        `json:"cultural_context,omitempty"`
	Region          Region         `json:"region"`
	AuthorID        string         `json:"author_id"`
	Author          *AuthorSummary `json:"author,omitempty"`
	ImageURL        *string        `json:"image_url,omitempty"`
	AudioURL        *string        `json:"audio_url,omitempty"`
	IsPublic        bool           `json:"is_public"`
	Views           int            `json:"views"`
	CreatedOn       time.Time      `json:"created_on"`
	UpdatedOn       time.Time      `json:"updated_on"`
}

// CreateTaleRequest represents a request to create a tale
type CreateTaleRequest struct {
	Title           string  `json:"title" validate:"required,max=100"`
	Story           string  `json:"story" validate:"required,max=5000"`
	CulturalContext *string `json:"cultural_context,omitempty" validate:"omitempty,max=1000"`
	Region          Region  `json:"region" validate:"required,region"`
	AuthorID        string  `json:"author_id" validate:"required"`
	ImageURL        *string `json:"image_url,omitempty" validate:"omitempty,url"`
	AudioURL        *string `json:"audio_url,omitempty" validate:"omitempty,url"`
	IsPublic        *bool   `json:"is_public,omitempty"` // defaults to true
}

// Validate checks the create request.
func (r *CreateTaleRequest) Validate() []FieldError {
	return validateStruct(r)
}

// Public returns the requested visibility, defaulting to public.
func (r *CreateTaleRequest) Public() bool {
	return r.IsPublic == nil || *r.IsPublic
}

// UpdateTaleRequest is a partial update; nil fields are left unchanged
type UpdateTaleRequest struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Story           *string `json:"story,omitempty" validate:"omitempty,min=1,max=5000"`
	CulturalContext *string `json:"cultural_context,omitempty" validate:"omitempty,max=1000"`
	Region          *Region `json:"region,omitempty" validate:"omitempty,region"`
	ImageURL        *string `json:"image_url,omitempty" validate:"omitempty,url"`
	AudioURL        *string `json:"audio_url,omitempty" validate:"omitempty,url"`
	IsPublic        *bool   `json:"is_public,omitempty"`
}

// Validate checks the update request.
func (r *UpdateTaleRequest) Validate() []FieldError {
	return validateStruct(r)
}

// TaleQuery holds the filters and window for a public listing
type TaleQuery struct {
	Page   int     `json:"page"`  // 1-based
	Limit  int     `json:"limit"` // page size
	Search string  `json:"search,omitempty"`
	Region *Region `json:"region,omitempty" validate:"omitempty,region"`
}

// Normalize clamps the page window to safe bounds.
func (q TaleQuery) Normalize() TaleQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	return q
}

// Offset returns how many records to skip for the (normalized) page.
func (q TaleQuery) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.Limit
}

// Validate checks the filters.
func (q *TaleQuery) Validate() []FieldError {
	return validateStruct(q)
}
