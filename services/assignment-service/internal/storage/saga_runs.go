package storage

import (
	"context"

	"github.com/md-rashed-zaman/staffsync/libs/db"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/model"
)

type SagaJournal struct {
	pool *db.Pool
}

func NewSagaJournal(pool *db.Pool) *SagaJournal {
	return &SagaJournal{pool: pool}
}

func (j *SagaJournal) Record(ctx context.Context, run model.SagaRun) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO saga_runs (id, assignment_id, employee_id, project_id, status, failed_step, error, started_at, finished_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9)
	`, run.ID, run.AssignmentID, run.EmployeeID, run.ProjectID, string(run.Status), run.FailedStep, run.Error, run.StartedAt, run.FinishedAt)
	return err
}

// List returns journaled runs, newest first, optionally filtered by status.
func (j *SagaJournal) List(ctx context.Context, status model.SagaStatus, limit int) ([]model.SagaRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := j.pool.Query(ctx, `
		SELECT id::text, COALESCE(assignment_id::text, ''), employee_id, project_id, status,
			failed_step, error, started_at, finished_at
		FROM saga_runs
		WHERE $1 = '' OR status = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SagaRun, 0)
	for rows.Next() {
		var run model.SagaRun
		if err := rows.Scan(&run.ID, &run.AssignmentID, &run.EmployeeID, &run.ProjectID, &run.Status,
			&run.FailedStep, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
