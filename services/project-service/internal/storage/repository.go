package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/staffsync/libs/db"
	"github.com/md-rashed-zaman/staffsync/libs/events"
	"github.com/md-rashed-zaman/staffsync/libs/outbox"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/model"
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, ob *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: ob}
}

const selectProject = `
	SELECT id::text, name, capacity, allocated, status, version, created_at, updated_at
	FROM projects
`

func scanProject(row pgx.Row) (model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.Name, &p.Capacity, &p.Allocated, &p.Status, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Project{}, model.ErrNotFound
	}
	return p, err
}

func lockProject(ctx context.Context, tx pgx.Tx, id string) (model.Project, error) {
	return scanProject(tx.QueryRow(ctx, selectProject+` WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) Create(ctx context.Context, name string, capacity int) (model.Project, error) {
	var p model.Project
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = scanProject(tx.QueryRow(ctx, `
			INSERT INTO projects (id, name, capacity, allocated, status, version)
			VALUES ($1, $2, $3, 0, 'active', 1)
			RETURNING id::text, name, capacity, allocated, status, version, created_at, updated_at
		`, uuid.NewString(), name, capacity))
		if err != nil {
			return err
		}
		_, err = r.outbox.Append(ctx, tx, events.ProjectCreated{
			ProjectID: p.ID,
			Name:      p.Name,
			Capacity:  p.Capacity,
		}, p.Version)
		return err
	})
	return p, err
}

func (r *Repository) Get(ctx context.Context, id string) (model.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, selectProject+` WHERE id = $1`, id))
}

func (r *Repository) Update(ctx context.Context, id string, patch model.Patch) (model.Project, error) {
	var p model.Project
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		if p, err = lockProject(ctx, tx, id); err != nil {
			return err
		}
		changed, err := patch.Apply(&p)
		if err != nil || len(changed) == 0 {
			return err
		}
		return r.save(ctx, tx, &p, changed)
	})
	return p, err
}

// Complete closes the project to new assignments. Completing twice is a no-op.
func (r *Repository) Complete(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		if p, err = lockProject(ctx, tx, id); err != nil {
			return err
		}
		if p.Status == model.StatusCompleted {
			return nil
		}
		err = tx.QueryRow(ctx, `
			UPDATE projects
			SET status = 'completed', version = version + 1, updated_at = now()
			WHERE id = $1
			RETURNING status, version, updated_at
		`, id).Scan(&p.Status, &p.Version, &p.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = r.outbox.Append(ctx, tx, events.ProjectCompleted{
			ProjectID:   p.ID,
			CompletedAt: p.UpdatedAt.UTC().Truncate(time.Microsecond),
		}, p.Version)
		return err
	})
	return p, err
}

// Reserve takes one capacity slot for assignmentID. Reserving the same
// assignment again returns the project unchanged.
func (r *Repository) Reserve(ctx context.Context, projectID, assignmentID string) (model.Project, error) {
	var p model.Project
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		if p, err = lockProject(ctx, tx, projectID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO project_reservations (project_id, assignment_id)
			VALUES ($1, $2)
			ON CONFLICT (project_id, assignment_id) DO NOTHING
		`, projectID, assignmentID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if err := p.CanReserve(); err != nil {
			return err
		}
		p.Allocated++
		return r.save(ctx, tx, &p, []string{"allocated"})
	})
	return p, err
}

// Release frees the slot held by assignmentID. Releasing an unknown or already
// released reservation returns the project unchanged.
func (r *Repository) Release(ctx context.Context, projectID, assignmentID string) (model.Project, error) {
	var p model.Project
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		if p, err = lockProject(ctx, tx, projectID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			DELETE FROM project_reservations
			WHERE project_id = $1 AND assignment_id = $2
		`, projectID, assignmentID)
		if err != nil || tag.RowsAffected() == 0 {
			return err
		}
		if p.Allocated > 0 {
			p.Allocated--
		}
		return r.save(ctx, tx, &p, []string{"allocated"})
	})
	return p, err
}

// save writes the mutable columns of p, bumps its version and emits
// ProjectUpdated naming changed.
func (r *Repository) save(ctx context.Context, tx pgx.Tx, p *model.Project, changed []string) error {
	err := tx.QueryRow(ctx, `
		UPDATE projects
		SET name = $2, capacity = $3, allocated = $4, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version, updated_at
	`, p.ID, p.Name, p.Capacity, p.Allocated).Scan(&p.Version, &p.UpdatedAt)
	if err != nil {
		return err
	}
	_, err = r.outbox.Append(ctx, tx, events.ProjectUpdated{
		ProjectID: p.ID,
		Name:      p.Name,
		Capacity:  p.Capacity,
		Allocated: p.Allocated,
		Changed:   changed,
	}, p.Version)
	return err
}
