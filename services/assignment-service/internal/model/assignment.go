// Package model holds the assignment aggregate, the saga journal record and
// the domain errors shared by the saga, storage and HTTP layers.
package model

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("assignment not found")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmployeeInactive = errors.New("employee is inactive")
	ErrProjectNotFound  = errors.New("project not found")
	ErrCapacityExceeded = errors.New("project capacity exceeded")
	ErrProjectClosed    = errors.New("project is completed")
	ErrInvalidPeriod    = errors.New("valid_to is before valid_from")
	// ErrUpstream wraps failures talking to the employee or project service.
	ErrUpstream = errors.New("upstream service failed")
)

// Deletion reasons stored with a soft-deleted assignment and carried on
// AssignmentRemoved.
const (
	ReasonRemoved     = "removed"
	ReasonCompensated = "compensated"
)

// Assignment links an employee to a project. EmployeeName and ProjectName are
// copies owned by other domains; the *Version fields record which version of
// the source entity they were copied from.
type Assignment struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employee_id"`
	ProjectID       string     `json:"project_id"`
	EmployeeName    string     `json:"employee_name"`
	ProjectName     string     `json:"project_name"`
	EmployeeVersion int64      `json:"employee_version"`
	ProjectVersion  int64      `json:"project_version"`
	ValidFrom       time.Time  `json:"valid_from"`
	ValidTo         *time.Time `json:"valid_to,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	DeletionReason  string     `json:"deletion_reason,omitempty"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (a Assignment) Deleted() bool { return a.DeletedAt != nil }

// ValidPeriod reports whether [from, to] is a usable audit period. A nil to is
// open-ended; to equal to from is allowed, matching the table constraint.
func ValidPeriod(from time.Time, to *time.Time) bool {
	return to == nil || !to.Before(from)
}

// Filter selects non-deleted assignments for listing.
type Filter struct {
	EmployeeID string
	ProjectID  string
	Limit      int
}
