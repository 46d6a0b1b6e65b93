// Package denorm keeps the employee and project copies on assignments in step
// with their owning domains.
//
// Name refreshes only apply when the event's version is newer than the one the
// row was copied from, so duplicated, stale and reordered deliveries leave the
// row unchanged. Deactivation and completion close open audit periods, which
// is idempotent by itself.
package denorm

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/staffsync/libs/eventbus"
	"github.com/md-rashed-zaman/staffsync/libs/events"
)

type Store interface {
	RefreshEmployee(ctx context.Context, employeeID, fullName string, version int64) (int64, error)
	RefreshProject(ctx context.Context, projectID, name string, version int64) (int64, error)
	CloseEmployeePeriods(ctx context.Context, employeeID string, at time.Time) (int64, error)
	CloseProjectPeriods(ctx context.Context, projectID string, at time.Time) (int64, error)
}

type handlers struct {
	store  Store
	logger *slog.Logger
}

// Register adds the assignment-domain handlers to reg.
func Register(reg *eventbus.Registry, store Store, logger *slog.Logger) {
	h := &handlers{store: store, logger: logger}
	reg.Register(events.TypeEmployeeCreated, h.employeeCreated)
	reg.Register(events.TypeEmployeeUpdated, h.employeeUpdated)
	reg.Register(events.TypeEmployeeDeactivated, h.employeeDeactivated)
	reg.Register(events.TypeProjectCreated, h.projectCreated)
	reg.Register(events.TypeProjectUpdated, h.projectUpdated)
	reg.Register(events.TypeProjectCompleted, h.projectCompleted)
}

func (h *handlers) employeeCreated(ctx context.Context, env events.Envelope, evt events.Event) error {
	e := evt.(events.EmployeeCreated)
	return h.refreshEmployee(ctx, env, e.EmployeeID, e.FullName)
}

func (h *handlers) employeeUpdated(ctx context.Context, env events.Envelope, evt events.Event) error {
	e := evt.(events.EmployeeUpdated)
	return h.refreshEmployee(ctx, env, e.EmployeeID, e.FullName)
}

func (h *handlers) refreshEmployee(ctx context.Context, env events.Envelope, id, name string) error {
	n, err := h.store.RefreshEmployee(ctx, id, name, env.Version)
	if err != nil {
		return err
	}
	h.logger.Debug("employee name refreshed", "employee_id", id, "version", env.Version, "rows", n)
	return nil
}

func (h *handlers) employeeDeactivated(ctx context.Context, env events.Envelope, evt events.Event) error {
	e := evt.(events.EmployeeDeactivated)
	n, err := h.store.CloseEmployeePeriods(ctx, e.EmployeeID, closedAt(e.DeactivatedAt, env))
	if err != nil {
		return err
	}
	h.logger.Info("assignments closed for deactivated employee", "employee_id", e.EmployeeID, "rows", n)
	return nil
}

func (h *handlers) projectCreated(ctx context.Context, env events.Envelope, evt events.Event) error {
	p := evt.(events.ProjectCreated)
	return h.refreshProject(ctx, env, p.ProjectID, p.Name)
}

func (h *handlers) projectUpdated(ctx context.Context, env events.Envelope, evt events.Event) error {
	p := evt.(events.ProjectUpdated)
	return h.refreshProject(ctx, env, p.ProjectID, p.Name)
}

func (h *handlers) refreshProject(ctx context.Context, env events.Envelope, id, name string) error {
	n, err := h.store.RefreshProject(ctx, id, name, env.Version)
	if err != nil {
		return err
	}
	h.logger.Debug("project name refreshed", "project_id", id, "version", env.Version, "rows", n)
	return nil
}

func (h *handlers) projectCompleted(ctx context.Context, env events.Envelope, evt events.Event) error {
	p := evt.(events.ProjectCompleted)
	n, err := h.store.CloseProjectPeriods(ctx, p.ProjectID, closedAt(p.CompletedAt, env))
	if err != nil {
		return err
	}
	h.logger.Info("assignments closed for completed project", "project_id", p.ProjectID, "rows", n)
	return nil
}

func closedAt(at time.Time, env events.Envelope) time.Time {
	if at.IsZero() {
		return env.OccurredAt
	}
	return at
}
