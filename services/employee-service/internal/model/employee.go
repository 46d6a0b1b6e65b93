package model

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("employee not found")
	ErrEmailTaken = errors.New("email already in use")
)

type Employee struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch holds the fields a partial update may change. Nil means unchanged.
type Patch struct {
	FullName *string
	Email    *string
}

// Apply copies the set fields onto e and returns the JSON names of those that
// actually changed.
func (p Patch) Apply(e *Employee) []string {
	var changed []string
	if p.FullName != nil && *p.FullName != e.FullName {
		e.FullName = *p.FullName
		changed = append(changed, "full_name")
	}
	if p.Email != nil && *p.Email != e.Email {
		e.Email = *p.Email
		changed = append(changed, "email")
	}
	return changed
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ListFilter selects one page of employees. Active nil lists everyone.
type ListFilter struct {
	Active  *bool
	Page    int
	PerPage int
}

// Offset is the number of rows skipped before the page starts.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPagination(f ListFilter, total int) Pagination {
	pages := 0
	if f.PerPage > 0 {
		pages = (total + f.PerPage - 1) / f.PerPage
	}
	return Pagination{Page: f.Page, PerPage: f.PerPage, Total: total, TotalPages: pages}
}
