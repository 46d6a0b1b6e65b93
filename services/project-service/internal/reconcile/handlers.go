// Package reconcile releases capacity for assignments removed in the
// assignment domain, covering the case where its direct release call failed.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/md-rashed-zaman/staffsync/libs/eventbus"
	"github.com/md-rashed-zaman/staffsync/libs/events"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/model"
)

// ReasonRemoved marks an assignment deleted through the API. Compensated
// assignments are left to the saga, which releases its own reservation.
const ReasonRemoved = "removed"

type Releaser interface {
	Release(ctx context.Context, projectID, assignmentID string) (model.Project, error)
}

func Register(reg *eventbus.Registry, store Releaser, logger *slog.Logger) {
	reg.Register(events.TypeAssignmentRemoved, func(ctx context.Context, _ events.Envelope, evt events.Event) error {
		removed := evt.(events.AssignmentRemoved)
		if removed.Reason != ReasonRemoved {
			return nil
		}
		_, err := store.Release(ctx, removed.ProjectID, removed.AssignmentID)
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("release for unknown project ignored", "project_id", removed.ProjectID, "assignment_id", removed.AssignmentID)
			return nil
		}
		return err
	})
}
