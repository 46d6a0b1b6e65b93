package model

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("project not found")
	ErrCapacityExceeded = errors.New("project capacity exceeded")
	ErrProjectClosed    = errors.New("project is completed")
	ErrCapacityTooLow   = errors.New("capacity below current allocation")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Allocated int       `json:"allocated"`
	Status    Status    `json:"status"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Available is the number of free assignment slots.
func (p Project) Available() int {
	if p.Allocated >= p.Capacity {
		return 0
	}
	return p.Capacity - p.Allocated
}

// CanReserve reports why another assignment cannot be added, or nil.
func (p Project) CanReserve() error {
	if p.Status == StatusCompleted {
		return ErrProjectClosed
	}
	if p.Allocated >= p.Capacity {
		return ErrCapacityExceeded
	}
	return nil
}

type Patch struct {
	Name     *string
	Capacity *int
}

// Apply copies the set fields onto p and returns the JSON names of those that
// changed. Lowering capacity below the current allocation is rejected.
func (pt Patch) Apply(p *Project) ([]string, error) {
	var changed []string
	if pt.Capacity != nil && *pt.Capacity != p.Capacity {
		if *pt.Capacity < p.Allocated {
			return nil, ErrCapacityTooLow
		}
		p.Capacity = *pt.Capacity
		changed = append(changed, "capacity")
	}
	if pt.Name != nil && *pt.Name != p.Name {
		p.Name = *pt.Name
		changed = append(changed, "name")
	}
	return changed, nil
}
