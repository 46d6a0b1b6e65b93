package denorm

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/staffsync/libs/eventbus"
	"github.com/md-rashed-zaman/staffsync/libs/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	employeeID, employeeName string
	employeeVersion          int64
	projectID, projectName   string
	projectVersion           int64
	validFrom                time.Time
	validTo                  *time.Time
	deleted                  bool
}

// memStore applies the same guarded updates the SQL repository does.
type memStore struct {
	rows []*row
}

func (m *memStore) RefreshEmployee(_ context.Context, id, name string, version int64) (int64, error) {
	var n int64
	for _, r := range m.rows {
		if r.employeeID == id && r.employeeVersion < version {
			r.employeeName, r.employeeVersion = name, version
			n++
		}
	}
	return n, nil
}

func (m *memStore) RefreshProject(_ context.Context, id, name string, version int64) (int64, error) {
	var n int64
	for _, r := range m.rows {
		if r.projectID == id && r.projectVersion < version {
			r.projectName, r.projectVersion = name, version
			n++
		}
	}
	return n, nil
}

func (m *memStore) close(match func(*row) bool, at time.Time) int64 {
	var n int64
	for _, r := range m.rows {
		if !match(r) || r.deleted {
			continue
		}
		end := at
		if end.Before(r.validFrom) {
			end = r.validFrom
		}
		if r.validTo == nil || r.validTo.After(end) {
			r.validTo = &end
			n++
		}
	}
	return n
}

func (m *memStore) CloseEmployeePeriods(_ context.Context, id string, at time.Time) (int64, error) {
	return m.close(func(r *row) bool { return r.employeeID == id }, at), nil
}

func (m *memStore) CloseProjectPeriods(_ context.Context, id string, at time.Time) (int64, error) {
	return m.close(func(r *row) bool { return r.projectID == id }, at), nil
}

var start = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func newStore() *memStore {
	return &memStore{rows: []*row{
		{employeeID: "e-1", employeeName: "Ada Lovelace", employeeVersion: 2, projectID: "p-1", projectName: "Apollo", projectVersion: 4, validFrom: start},
		{employeeID: "e-1", employeeName: "Ada Lovelace", employeeVersion: 2, projectID: "p-2", projectName: "Gemini", projectVersion: 1, validFrom: start},
		{employeeID: "e-2", employeeName: "Grace Hopper", employeeVersion: 5, projectID: "p-1", projectName: "Apollo", projectVersion: 4, validFrom: start},
	}}
}

func newRegistry(store Store) *eventbus.Registry {
	reg := eventbus.NewRegistry()
	Register(reg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return reg
}

func envelope(t *testing.T, evt events.Event, version int64) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(evt, version, start.Add(time.Hour))
	require.NoError(t, err)
	return env
}

func TestEmployeeUpdated_OverwritesAllReferencingRows(t *testing.T) {
	store := newStore()
	reg := newRegistry(store)

	require.NoError(t, reg.Dispatch(context.Background(), envelope(t, events.EmployeeUpdated{EmployeeID: "e-1", FullName: "Ada King"}, 3)))

	assert.Equal(t, "Ada King", store.rows[0].employeeName)
	assert.Equal(t, "Ada King", store.rows[1].employeeName)
	assert.Equal(t, "Grace Hopper", store.rows[2].employeeName)
}

func TestEmployeeUpdated_DuplicateIsNoop(t *testing.T) {
	store := newStore()
	reg := newRegistry(store)
	env := envelope(t, events.EmployeeUpdated{EmployeeID: "e-1", FullName: "Ada King"}, 3)

	require.NoError(t, reg.Dispatch(context.Background(), env))
	before := *store.rows[0]
	require.NoError(t, reg.Dispatch(context.Background(), env))
	assert.Equal(t, before, *store.rows[0])
}

func TestProjectUpdated_OutOfOrderKeepsNewest(t *testing.T) {
	store := newStore()
	reg := newRegistry(store)
	ctx := context.Background()

	require.NoError(t, reg.Dispatch(ctx, envelope(t, events.ProjectUpdated{ProjectID: "p-1", Name: "Apollo II"}, 6)))
	require.NoError(t, reg.Dispatch(ctx, envelope(t, events.ProjectUpdated{ProjectID: "p-1", Name: "Apollo I"}, 5)))

	assert.Equal(t, "Apollo II", store.rows[0].projectName)
	assert.Equal(t, int64(6), store.rows[0].projectVersion)
	assert.Equal(t, "Apollo II", store.rows[2].projectName)
}

func TestProjectCreated_DoesNotRegressNewerCopy(t *testing.T) {
	store := newStore()
	reg := newRegistry(store)

	require.NoError(t, reg.Dispatch(context.Background(), envelope(t, events.ProjectCreated{ProjectID: "p-1", Name: "Draft"}, 1)))
	assert.Equal(t, "Apollo", store.rows[0].projectName)
}

func TestEmployeeDeactivated_ClosesOpenPeriodsOnce(t *testing.T) {
	store := newStore()
	reg := newRegistry(store)
	ctx := context.Background()
	at := start.Add(48 * time.Hour)

	require.NoError(t, reg.Dispatch(ctx, envelope(t, events.EmployeeDeactivated{EmployeeID: "e-1", DeactivatedAt: at}, 4)))
	require.NotNil(t, store.rows[0].validTo)
	assert.Equal(t, at, *store.rows[0].validTo)
	assert.Nil(t, store.rows[2].validTo)

	later := at.Add(time.Hour)
	require.NoError(t, reg.Dispatch(ctx, envelope(t, events.EmployeeDeactivated{EmployeeID: "e-1", DeactivatedAt: later}, 4)))
	assert.Equal(t, at, *store.rows[0].validTo)
}

func TestProjectCompleted_SkipsDeletedRows(t *testing.T) {
	store := newStore()
	store.rows[2].deleted = true
	reg := newRegistry(store)

	require.NoError(t, reg.Dispatch(context.Background(), envelope(t, events.ProjectCompleted{ProjectID: "p-1"}, 9)))
	require.NotNil(t, store.rows[0].validTo)
	assert.Equal(t, start.Add(time.Hour), *store.rows[0].validTo)
	assert.Nil(t, store.rows[2].validTo)
}

func TestEmployeeDeactivated_CutsScheduledPeriods(t *testing.T) {
	store := newStore()
	planned := start.AddDate(4, 0, 0)
	earlier := start.Add(24 * time.Hour)
	store.rows[0].validTo = &planned
	store.rows[1].validTo = &earlier
	reg := newRegistry(store)
	at := start.Add(48 * time.Hour)

	require.NoError(t, reg.Dispatch(context.Background(), envelope(t, events.EmployeeDeactivated{EmployeeID: "e-1", DeactivatedAt: at}, 4)))
	assert.Equal(t, at, *store.rows[0].validTo)
	assert.Equal(t, earlier, *store.rows[1].validTo)

	n, err := store.CloseEmployeePeriods(context.Background(), "e-1", at)
	require.NoError(t, err)
	assert.Zero(t, n)
}
