// Package events defines the domain events exchanged between the employee,
// project and assignment domains and the envelope they travel in.
//
// Event type strings double as Kafka topic names.
package events

import "time"

type Type string

const (
	TypeEmployeeCreated     Type = "employee.created.v1"
	TypeEmployeeUpdated     Type = "employee.updated.v1"
	TypeEmployeeDeactivated Type = "employee.deactivated.v1"
	TypeProjectCreated      Type = "project.created.v1"
	TypeProjectUpdated      Type = "project.updated.v1"
	TypeProjectCompleted    Type = "project.completed.v1"
	TypeAssignmentCreated   Type = "assignment.created.v1"
	TypeAssignmentRemoved   Type = "assignment.removed.v1"
)

// Event is implemented by every domain event variant.
type Event interface {
	EventType() Type
	AggregateID() string
}

type EmployeeCreated struct {
	EmployeeID string `json:"employee_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
}

// EmployeeUpdated carries the current values of the mutable fields; Changed
// names the ones this update touched.
type EmployeeUpdated struct {
	EmployeeID string   `json:"employee_id"`
	FullName   string   `json:"full_name"`
	Email      string   `json:"email"`
	Changed    []string `json:"changed"`
}

type EmployeeDeactivated struct {
	EmployeeID    string    `json:"employee_id"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

type ProjectCreated struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
}

type ProjectUpdated struct {
	ProjectID string   `json:"project_id"`
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Allocated int      `json:"allocated"`
	Changed   []string `json:"changed"`
}

type ProjectCompleted struct {
	ProjectID   string    `json:"project_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type AssignmentCreated struct {
	AssignmentID string    `json:"assignment_id"`
	EmployeeID   string    `json:"employee_id"`
	ProjectID    string    `json:"project_id"`
	ValidFrom    time.Time `json:"valid_from"`
}

type AssignmentRemoved struct {
	AssignmentID string    `json:"assignment_id"`
	EmployeeID   string    `json:"employee_id"`
	ProjectID    string    `json:"project_id"`
	Reason       string    `json:"reason"`
	RemovedAt    time.Time `json:"removed_at"`
}

func (EmployeeCreated) EventType() Type { return TypeEmployeeCreated }
func (e EmployeeCreated) AggregateID() string { return e.EmployeeID }

func (EmployeeUpdated) EventType() Type { return TypeEmployeeUpdated }
func (e EmployeeUpdated) AggregateID() string { return e.EmployeeID }

func (EmployeeDeactivated) EventType() Type { return TypeEmployeeDeactivated }
func (e EmployeeDeactivated) AggregateID() string { return e.EmployeeID }

func (ProjectCreated) EventType() Type { return TypeProjectCreated }
func (e ProjectCreated) AggregateID() string { return e.ProjectID }

func (ProjectUpdated) EventType() Type { return TypeProjectUpdated }
func (e ProjectUpdated) AggregateID() string { return e.ProjectID }

func (ProjectCompleted) EventType() Type { return TypeProjectCompleted }
func (e ProjectCompleted) AggregateID() string { return e.ProjectID }

func (AssignmentCreated) EventType() Type { return TypeAssignmentCreated }
func (e AssignmentCreated) AggregateID() string { return e.AssignmentID }

func (AssignmentRemoved) EventType() Type { return TypeAssignmentRemoved }
func (e AssignmentRemoved) AggregateID() string { return e.AssignmentID }
