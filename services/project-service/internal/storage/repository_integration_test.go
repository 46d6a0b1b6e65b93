//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/staffsync/libs/db"
	"github.com/md-rashed-zaman/staffsync/libs/outbox"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/model"
	"github.com/md-rashed-zaman/staffsync/services/project-service/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRepo(t *testing.T) (context.Context, *db.Pool, *Repository) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("projects"),
		tcpostgres.WithUsername("staffsync"),
		tcpostgres.WithPassword("staffsync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.MigrateUp(dbURL, migrations.FS))

	pool, err := db.Open(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return ctx, pool, NewRepository(pool, outbox.NewRepository(pool))
}

func countReservations(t *testing.T, ctx context.Context, pool *db.Pool, projectID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM project_reservations WHERE project_id = $1`, projectID).Scan(&n))
	return n
}

func countUpdates(t *testing.T, ctx context.Context, pool *db.Pool, projectID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox_events WHERE event_type = 'project.updated.v1' AND aggregate_id = $1`, projectID).Scan(&n))
	return n
}

func TestReserve_TwiceAllocatesOnce(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	p, err := repo.Create(ctx, "Apollo", 2)
	require.NoError(t, err)
	assignmentID := uuid.NewString()

	first, err := repo.Reserve(ctx, p.ID, assignmentID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Allocated)

	again, err := repo.Reserve(ctx, p.ID, assignmentID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Allocated)
	assert.Equal(t, first.Version, again.Version)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Allocated)
	assert.Equal(t, 1, countReservations(t, ctx, pool, p.ID))
	assert.Equal(t, 1, countUpdates(t, ctx, pool, p.ID))
}

func TestReserve_FullProjectLeavesNoReservation(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	p, err := repo.Create(ctx, "Gemini", 1)
	require.NoError(t, err)

	_, err = repo.Reserve(ctx, p.ID, uuid.NewString())
	require.NoError(t, err)

	_, err = repo.Reserve(ctx, p.ID, uuid.NewString())
	require.ErrorIs(t, err, model.ErrCapacityExceeded)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Allocated)
	assert.Equal(t, 1, countReservations(t, ctx, pool, p.ID))
}

func TestReserve_CompletedProject(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	p, err := repo.Create(ctx, "Mercury", 3)
	require.NoError(t, err)
	_, err = repo.Complete(ctx, p.ID)
	require.NoError(t, err)

	_, err = repo.Reserve(ctx, p.ID, uuid.NewString())
	require.ErrorIs(t, err, model.ErrProjectClosed)
	assert.Zero(t, countReservations(t, ctx, pool, p.ID))

	_, err = repo.Reserve(ctx, uuid.NewString(), uuid.NewString())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRelease_TwiceFreesOnce(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	p, err := repo.Create(ctx, "Artemis", 2)
	require.NoError(t, err)
	kept, released := uuid.NewString(), uuid.NewString()
	_, err = repo.Reserve(ctx, p.ID, kept)
	require.NoError(t, err)
	_, err = repo.Reserve(ctx, p.ID, released)
	require.NoError(t, err)

	after, err := repo.Release(ctx, p.ID, released)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Allocated)

	again, err := repo.Release(ctx, p.ID, released)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Allocated)
	assert.Equal(t, after.Version, again.Version)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Allocated)
	assert.Equal(t, 1, countReservations(t, ctx, pool, p.ID))
}
