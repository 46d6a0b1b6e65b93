// Package saga creates assignments across the employee, project and
// assignment domains, compensating when the final capacity reservation fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffsync/libs/metrics"
	otelx "github.com/md-rashed-zaman/staffsync/libs/otel"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/directory"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Employees interface {
	GetEmployee(ctx context.Context, id string) (directory.Employee, error)
}

type Projects interface {
	GetProject(ctx context.Context, id string) (directory.Project, error)
	Reserve(ctx context.Context, projectID, assignmentID string) error
	Release(ctx context.Context, projectID, assignmentID string) error
}

type Store interface {
	Create(ctx context.Context, a model.Assignment) (model.Assignment, error)
	SoftDelete(ctx context.Context, id string, reason string) (model.Assignment, bool, error)
}

type Journal interface {
	Record(ctx context.Context, run model.SagaRun) error
}

type Request struct {
	EmployeeID string
	ProjectID  string
	ValidFrom  time.Time
	ValidTo    *time.Time
}

type Orchestrator struct {
	employees Employees
	projects  Projects
	store     Store
	journal   Journal
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

func New(employees Employees, projects Projects, store Store, journal Journal, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		employees: employees,
		projects:  projects,
		store:     store,
		journal:   journal,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Execute runs the four steps in order: fetch employee, fetch project, persist
// the assignment, reserve capacity. Nothing is persisted unless the first two
// succeed. When the reservation fails the persisted assignment is soft-deleted
// and the reservation released; those compensations are attempted once each.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (model.Assignment, error) {
	run := model.SagaRun{
		ID:         o.newID(),
		EmployeeID: req.EmployeeID,
		ProjectID:  req.ProjectID,
		StartedAt:  o.now().UTC(),
	}
	ctx, span := otelx.Tracer("saga").Start(ctx, "saga.create_assignment", trace.WithAttributes(
		attribute.String("saga.run_id", run.ID),
		attribute.String("employee.id", req.EmployeeID),
		attribute.String("project.id", req.ProjectID),
	))
	defer span.End()
	log := o.logger.With("saga_run_id", run.ID, "employee_id", req.EmployeeID, "project_id", req.ProjectID)

	a, err := o.execute(ctx, req, &run, log)

	run.FinishedAt = o.now().UTC()
	if err != nil {
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(run.Status))
	}
	span.SetAttributes(attribute.String("saga.status", string(run.Status)))
	metrics.SagaRuns.WithLabelValues(string(run.Status)).Inc()
	if jerr := o.journal.Record(context.WithoutCancel(ctx), run); jerr != nil {
		log.Error("saga journal write failed", "err", jerr, "status", run.Status)
	}
	return a, err
}

func (o *Orchestrator) execute(ctx context.Context, req Request, run *model.SagaRun, log *slog.Logger) (model.Assignment, error) {
	fail := func(step string, err error) (model.Assignment, error) {
		run.Status = model.SagaFailed
		run.FailedStep = step
		log.Info("assignment saga failed", "step", step, "err", err)
		return model.Assignment{}, err
	}

	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = o.now()
	}
	validFrom = validFrom.UTC()
	if !model.ValidPeriod(validFrom, req.ValidTo) {
		return fail(model.StepValidate, model.ErrInvalidPeriod)
	}

	employee, err := o.employees.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return fail(model.StepFetchEmployee, err)
	}
	if !employee.Active {
		return fail(model.StepFetchEmployee, model.ErrEmployeeInactive)
	}

	project, err := o.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return fail(model.StepFetchProject, err)
	}
	if project.Status == directory.ProjectCompleted {
		return fail(model.StepFetchProject, model.ErrProjectClosed)
	}
	if project.Allocated >= project.Capacity {
		return fail(model.StepFetchProject, model.ErrCapacityExceeded)
	}

	a, err := o.store.Create(ctx, model.Assignment{
		ID:              o.newID(),
		EmployeeID:      employee.ID,
		ProjectID:       project.ID,
		EmployeeName:    employee.FullName,
		ProjectName:     project.Name,
		EmployeeVersion: employee.Version,
		ProjectVersion:  project.Version,
		ValidFrom:       validFrom,
		ValidTo:         req.ValidTo,
	})
	if err != nil {
		return fail(model.StepPersist, fmt.Errorf("persist assignment: %w", err))
	}
	run.AssignmentID = a.ID

	if err := o.projects.Reserve(ctx, a.ProjectID, a.ID); err != nil {
		run.FailedStep = model.StepReserve
		run.Status = o.compensate(ctx, a, log)
		log.Warn("capacity reservation failed", "assignment_id", a.ID, "err", err, "status", run.Status)
		if errors.Is(err, model.ErrCapacityExceeded) || errors.Is(err, model.ErrProjectClosed) || errors.Is(err, model.ErrProjectNotFound) {
			return model.Assignment{}, err
		}
		return model.Assignment{}, fmt.Errorf("reserve capacity: %w", err)
	}

	run.Status = model.SagaCompleted
	log.Info("assignment created", "assignment_id", a.ID)
	return a, nil
}

// compensate undoes step 3 and any partial effect of step 4. It runs detached
// from the caller's cancellation so a disconnecting client cannot leave the
// assignment half undone.
func (o *Orchestrator) compensate(ctx context.Context, a model.Assignment, log *slog.Logger) model.SagaStatus {
	ctx = context.WithoutCancel(ctx)
	status := model.SagaCompensated

	if _, _, err := o.store.SoftDelete(ctx, a.ID, model.ReasonCompensated); err != nil {
		status = model.SagaCompensationFailed
		log.Error("compensation failed: soft delete", "assignment_id", a.ID, "err", err)
	}
	if err := o.projects.Release(ctx, a.ProjectID, a.ID); err != nil && !errors.Is(err, model.ErrProjectNotFound) {
		status = model.SagaCompensationFailed
		log.Error("compensation failed: release capacity", "assignment_id", a.ID, "err", err)
	}
	return status
}
