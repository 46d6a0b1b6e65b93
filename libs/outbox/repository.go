// Package outbox writes domain events into the producing service's database in
// the same transaction as the state change, and relays them to Kafka.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/staffsync/libs/db"
	"github.com/md-rashed-zaman/staffsync/libs/events"
	otelx "github.com/md-rashed-zaman/staffsync/libs/otel"
)

type Repository struct {
	pool *db.Pool
	now  func() time.Time
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// Append wraps evt in an envelope stamped with version and stores it in tx.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, evt events.Event, version int64) (events.Envelope, error) {
	env, err := events.NewEnvelope(evt, version, r.now())
	if err != nil {
		return events.Envelope{}, err
	}
	payload, err := env.Marshal()
	if err != nil {
		return events.Envelope{}, fmt.Errorf("encode envelope: %w", err)
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_id, event_type, version, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, env.EventID, env.AggregateID, string(env.EventType), env.Version, payload, traceparent, tracestate)
	if err != nil {
		return events.Envelope{}, fmt.Errorf("insert outbox event: %w", err)
	}
	return env, nil
}

type Record struct {
	ID          int64
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	Traceparent string
	Tracestate  string
	CreatedAt   time.Time
}

func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateID, &rcd.EventType, &rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
