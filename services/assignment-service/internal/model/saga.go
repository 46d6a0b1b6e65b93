package model

import "time"

type SagaStatus string

const (
	SagaCompleted          SagaStatus = "completed"
	SagaFailed             SagaStatus = "failed"
	SagaCompensated        SagaStatus = "compensated"
	SagaCompensationFailed SagaStatus = "compensation_failed"
)

// Saga steps, in execution order.
const (
	StepValidate      = "validate_period"
	StepFetchEmployee = "fetch_employee"
	StepFetchProject  = "fetch_project"
	StepPersist       = "persist_assignment"
	StepReserve       = "reserve_capacity"
)

// SagaRun is the journal entry written once per orchestrator run.
type SagaRun struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id,omitempty"`
	EmployeeID   string     `json:"employee_id"`
	ProjectID    string     `json:"project_id"`
	Status       SagaStatus `json:"status"`
	FailedStep   string     `json:"failed_step,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
}
