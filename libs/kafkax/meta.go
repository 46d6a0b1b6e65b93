package kafkax

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EventMeta is the canonical metadata carried on Kafka messages across services.
type EventMeta struct {
	EventID   string
	EventType string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, HeaderEventID)
	eventType := HeaderValue(msg.Headers, HeaderEventType)
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

// EventMessage builds the message for one event: topic is the event type, key
// is the aggregate id so every change to an aggregate lands on one partition.
func EventMessage(ctx context.Context, meta EventMeta, aggregateID string, value []byte) kafka.Message {
	msg := kafka.Message{
		Topic: meta.EventType,
		Key:   []byte(aggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(meta.EventID)},
			{Key: HeaderEventType, Value: []byte(meta.EventType)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	return msg
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
