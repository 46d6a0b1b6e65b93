package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/staffsync/libs/db"
	"github.com/md-rashed-zaman/staffsync/libs/events"
	"github.com/md-rashed-zaman/staffsync/libs/outbox"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/model"
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, ob *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: ob}
}

const assignmentColumns = `
	id::text, employee_id::text, project_id::text, employee_name, project_name,
	employee_version, project_version, valid_from, valid_to, deleted_at,
	deletion_reason, version, created_at, updated_at
`

func scanAssignment(row pgx.Row) (model.Assignment, error) {
	var a model.Assignment
	err := row.Scan(&a.ID, &a.EmployeeID, &a.ProjectID, &a.EmployeeName, &a.ProjectName,
		&a.EmployeeVersion, &a.ProjectVersion, &a.ValidFrom, &a.ValidTo, &a.DeletedAt,
		&a.DeletionReason, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Assignment{}, model.ErrNotFound
	}
	return a, err
}

// Create inserts a and appends AssignmentCreated in the same transaction.
// a.ID must already be set.
func (r *Repository) Create(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	var out model.Assignment
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanAssignment(tx.QueryRow(ctx, `
			INSERT INTO assignments (
				id, employee_id, project_id, employee_name, project_name,
				employee_version, project_version, valid_from, valid_to, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
			RETURNING `+assignmentColumns,
			a.ID, a.EmployeeID, a.ProjectID, a.EmployeeName, a.ProjectName,
			a.EmployeeVersion, a.ProjectVersion, a.ValidFrom, a.ValidTo))
		if err != nil {
			return err
		}
		_, err = r.outbox.Append(ctx, tx, events.AssignmentCreated{
			AssignmentID: out.ID,
			EmployeeID:   out.EmployeeID,
			ProjectID:    out.ProjectID,
			ValidFrom:    out.ValidFrom,
		}, out.Version)
		return err
	})
	return out, err
}

// Get returns the assignment, including soft-deleted ones.
func (r *Repository) Get(ctx context.Context, id string) (model.Assignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
}

// List returns non-deleted assignments, newest first.
func (r *Repository) List(ctx context.Context, f model.Filter) ([]model.Assignment, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR employee_id::text = $1)
		  AND ($2 = '' OR project_id::text = $2)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, f.EmployeeID, f.ProjectID, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SoftDelete marks the assignment deleted with reason and appends
// AssignmentRemoved. It reports false, without error, when the assignment was
// already deleted.
func (r *Repository) SoftDelete(ctx context.Context, id string, reason string) (model.Assignment, bool, error) {
	var (
		a       model.Assignment
		deleted bool
	)
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		a, err = scanAssignment(tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1 FOR UPDATE`, id))
		if err != nil || a.Deleted() {
			return err
		}
		a, err = scanAssignment(tx.QueryRow(ctx, `
			UPDATE assignments
			SET deleted_at = now(), deletion_reason = $2, version = version + 1, updated_at = now()
			WHERE id = $1
			RETURNING `+assignmentColumns, id, reason))
		if err != nil {
			return err
		}
		_, err = r.outbox.Append(ctx, tx, events.AssignmentRemoved{
			AssignmentID: a.ID,
			EmployeeID:   a.EmployeeID,
			ProjectID:    a.ProjectID,
			Reason:       reason,
			RemovedAt:    *a.DeletedAt,
		}, a.Version)
		deleted = err == nil
		return err
	})
	return a, deleted, err
}

// RefreshEmployee overwrites the denormalized employee name on every
// assignment copied from an older employee version.
func (r *Repository) RefreshEmployee(ctx context.Context, employeeID, fullName string, version int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET employee_name = $2, employee_version = $3, updated_at = now()
		WHERE employee_id = $1 AND employee_version < $3
	`, employeeID, fullName, version)
	return tag.RowsAffected(), err
}

func (r *Repository) RefreshProject(ctx context.Context, projectID, name string, version int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET project_name = $2, project_version = $3, updated_at = now()
		WHERE project_id = $1 AND project_version < $3
	`, projectID, name, version)
	return tag.RowsAffected(), err
}

// CloseEmployeePeriods ends the audit periods of the employee's live
// assignments at the given time, never before valid_from. Open-ended periods
// and periods scheduled to end later are both cut; periods already ending by
// then are left alone, so re-applying is a no-op.
func (r *Repository) CloseEmployeePeriods(ctx context.Context, employeeID string, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET valid_to = GREATEST(valid_from, $2), updated_at = now()
		WHERE employee_id = $1 AND deleted_at IS NULL
		  AND (valid_to IS NULL OR valid_to > GREATEST(valid_from, $2))
	`, employeeID, at)
	return tag.RowsAffected(), err
}

func (r *Repository) CloseProjectPeriods(ctx context.Context, projectID string, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET valid_to = GREATEST(valid_from, $2), updated_at = now()
		WHERE project_id = $1 AND deleted_at IS NULL
		  AND (valid_to IS NULL OR valid_to > GREATEST(valid_from, $2))
	`, projectID, at)
	return tag.RowsAffected(), err
}
