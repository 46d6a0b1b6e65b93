package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/staffsync/libs/eventbus"
	"github.com/md-rashed-zaman/staffsync/libs/events"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type releaseCall struct{ project, assignment string }

type fakeReleaser struct {
	calls []releaseCall
	err   error
}

func (f *fakeReleaser) Release(_ context.Context, projectID, assignmentID string) (model.Project, error) {
	f.calls = append(f.calls, releaseCall{projectID, assignmentID})
	return model.Project{}, f.err
}

func dispatch(t *testing.T, store Releaser, reason string) error {
	t.Helper()
	reg := eventbus.NewRegistry()
	Register(reg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env, err := events.NewEnvelope(events.AssignmentRemoved{
		AssignmentID: "a-1",
		ProjectID:    "p-1",
		EmployeeID:   "e-1",
		Reason:       reason,
		RemovedAt:    time.Now(),
	}, 2, time.Now())
	require.NoError(t, err)
	return reg.Dispatch(context.Background(), env)
}

func TestRemovedAssignmentReleasesSlot(t *testing.T) {
	store := &fakeReleaser{}
	require.NoError(t, dispatch(t, store, ReasonRemoved))
	assert.Equal(t, []releaseCall{{"p-1", "a-1"}}, store.calls)
}

func TestCompensatedAssignmentIgnored(t *testing.T) {
	store := &fakeReleaser{}
	require.NoError(t, dispatch(t, store, "compensated"))
	assert.Empty(t, store.calls)
}

func TestUnknownProjectIgnored(t *testing.T) {
	require.NoError(t, dispatch(t, &fakeReleaser{err: model.ErrNotFound}, ReasonRemoved))
}
