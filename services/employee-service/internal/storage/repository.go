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
	"github.com/md-rashed-zaman/staffsync/services/employee-service/internal/model"
)

// Repository persists employees. Every mutation bumps version and appends the
// matching event to the outbox in the same transaction.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, ob *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: ob}
}

const selectEmployee = `
	SELECT id::text, full_name, email, active, version, created_at, updated_at
	FROM employees
`

func scanEmployee(row pgx.Row) (model.Employee, error) {
	var e model.Employee
	err := row.Scan(&e.ID, &e.FullName, &e.Email, &e.Active, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Employee{}, model.ErrNotFound
	}
	return e, err
}

func (r *Repository) Create(ctx context.Context, fullName, email string) (model.Employee, error) {
	var e model.Employee
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		e, err = scanEmployee(tx.QueryRow(ctx, `
			INSERT INTO employees (id, full_name, email, active, version)
			VALUES ($1, $2, $3, true, 1)
			RETURNING id::text, full_name, email, active, version, created_at, updated_at
		`, uuid.NewString(), fullName, email))
		if err != nil {
			if db.IsUniqueViolation(err) {
				return model.ErrEmailTaken
			}
			return err
		}
		_, err = r.outbox.Append(ctx, tx, events.EmployeeCreated{
			EmployeeID: e.ID,
			FullName:   e.FullName,
			Email:      e.Email,
		}, e.Version)
		return err
	})
	return e, err
}

func (r *Repository) Get(ctx context.Context, id string) (model.Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, selectEmployee+` WHERE id = $1`, id))
}

// List returns one page of employees in creation order and the number of
// employees matching the filter across all pages.
func (r *Repository) List(ctx context.Context, f model.ListFilter) ([]model.Employee, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM employees WHERE ($1::boolean IS NULL OR active = $1)
	`, f.Active).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, selectEmployee+`
		WHERE ($1::boolean IS NULL OR active = $1)
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, f.Active, f.PerPage, f.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Employee, 0, f.PerPage)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Update applies patch. A patch that changes nothing returns the current row
// without bumping the version or emitting an event.
func (r *Repository) Update(ctx context.Context, id string, patch model.Patch) (model.Employee, error) {
	var e model.Employee
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		e, err = scanEmployee(tx.QueryRow(ctx, selectEmployee+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		changed := patch.Apply(&e)
		if len(changed) == 0 {
			return nil
		}
		err = tx.QueryRow(ctx, `
			UPDATE employees
			SET full_name = $2, email = $3, version = version + 1, updated_at = now()
			WHERE id = $1
			RETURNING version, updated_at
		`, id, e.FullName, e.Email).Scan(&e.Version, &e.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return model.ErrEmailTaken
			}
			return err
		}
		_, err = r.outbox.Append(ctx, tx, events.EmployeeUpdated{
			EmployeeID: e.ID,
			FullName:   e.FullName,
			Email:      e.Email,
			Changed:    changed,
		}, e.Version)
		return err
	})
	return e, err
}

// Deactivate marks the employee inactive. Deactivating twice is a no-op.
func (r *Repository) Deactivate(ctx context.Context, id string) (model.Employee, error) {
	var e model.Employee
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		e, err = scanEmployee(tx.QueryRow(ctx, selectEmployee+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil || !e.Active {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE employees
			SET active = false, version = version + 1, updated_at = now()
			WHERE id = $1
			RETURNING active, version, updated_at
		`, id).Scan(&e.Active, &e.Version, &e.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = r.outbox.Append(ctx, tx, events.EmployeeDeactivated{
			EmployeeID:    e.ID,
			DeactivatedAt: e.UpdatedAt.UTC().Truncate(time.Microsecond),
		}, e.Version)
		return err
	})
	return e, err
}
