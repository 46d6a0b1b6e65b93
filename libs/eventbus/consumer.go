package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/md-rashed-zaman/staffsync/libs/events"
	"github.com/md-rashed-zaman/staffsync/libs/kafkax"
	"github.com/md-rashed-zaman/staffsync/libs/metrics"
	otelx "github.com/md-rashed-zaman/staffsync/libs/otel"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Inbox records processed event ids so redeliveries are skipped.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers string
	GroupID string
	// MaxTries bounds handler attempts per message before it is skipped.
	MaxTries uint
}

type Consumer struct {
	reader   MessageReader
	registry *Registry
	inbox    Inbox
	logger   *slog.Logger
	maxTries uint
	backoff  func() backoff.BackOff
}

// NewConsumer subscribes to one topic per registered event type. Returns nil
// when no brokers are configured.
func NewConsumer(logger *slog.Logger, registry *Registry, inbox Inbox, cfg ConsumerConfig) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil
	}
	topics := make([]string, 0)
	for _, t := range registry.Types() {
		topics = append(topics, string(t))
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(reader, registry, inbox, logger, cfg.MaxTries)
}

func newConsumer(reader MessageReader, registry *Registry, inbox Inbox, logger *slog.Logger, maxTries uint) *Consumer {
	if maxTries == 0 {
		maxTries = 5
	}
	return &Consumer{
		reader:   reader,
		registry: registry,
		inbox:    inbox,
		logger:   logger,
		maxTries: maxTries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Run consumes until ctx is cancelled. Offsets are committed after each
// message is handled, skipped as a duplicate, or given up on.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka fetch error", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit error", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otelx.Tracer("eventbus").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	env, err := events.Parse(msg.Value)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("dropping malformed event", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		return
	}
	log := c.logger.With("event_id", env.EventID, "event_type", env.EventType, "aggregate_id", env.AggregateID)

	seen, err := c.inbox.Seen(ctxSpan, env.EventID)
	if err != nil {
		log.Warn("inbox lookup failed", "err", err)
	}
	if seen {
		metrics.EventsDuplicate.WithLabelValues(string(env.EventType)).Inc()
		log.Info("duplicate event ignored")
		return
	}

	_, err = backoff.Retry(ctxSpan, func() (struct{}, error) {
		err := c.registry.Dispatch(ctxSpan, env)
		if errors.Is(err, events.ErrMalformed) || errors.Is(err, events.ErrUnknownType) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(c.backoff()), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		span.RecordError(err)
		log.Error("event handling failed", "err", err)
		return
	}

	if _, err := c.inbox.Record(ctxSpan, env.EventID, string(env.EventType)); err != nil {
		log.Warn("inbox record failed", "err", err)
	}
}
