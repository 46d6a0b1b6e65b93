package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/staffsync/libs/db"
	"github.com/md-rashed-zaman/staffsync/libs/kafkax"
	"github.com/md-rashed-zaman/staffsync/libs/metrics"
	otelx "github.com/md-rashed-zaman/staffsync/libs/otel"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run relays outbox rows until ctx is cancelled. Without brokers it logs and
// returns immediately; rows then accumulate until a publisher runs.
func (p *Publisher) Run(ctx context.Context) error {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return nil
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer MessageWriter) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}
	metrics.OutboxPending.Set(float64(len(records)))
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	if err := writer.WriteMessages(ctx, Messages(ctx, records)...); err != nil {
		return err
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	for _, r := range records {
		metrics.OutboxPublished.WithLabelValues(r.EventType).Inc()
	}
	return nil
}

// Messages converts outbox rows into Kafka messages, restoring the trace
// context captured when each row was written.
func Messages(ctx context.Context, records []Record) []kafka.Message {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		msgs = append(msgs, kafkax.EventMessage(msgCtx, kafkax.EventMeta{
			EventID:   r.EventID,
			EventType: r.EventType,
		}, r.AggregateID, r.Payload))
	}
	return msgs
}
