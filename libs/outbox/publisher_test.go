package outbox

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/staffsync/libs/kafkax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	records := []Record{
		{ID: 1, EventID: "evt-1", AggregateID: "emp-1", EventType: "employee.created.v1", Payload: []byte(`{"a":1}`)},
		{ID: 2, EventID: "evt-2", AggregateID: "emp-1", EventType: "employee.updated.v1", Payload: []byte(`{"a":2}`)},
	}

	msgs := Messages(context.Background(), records)
	require.Len(t, msgs, 2)

	assert.Equal(t, "employee.created.v1", msgs[0].Topic)
	assert.Equal(t, "emp-1", string(msgs[0].Key))
	assert.Equal(t, `{"a":1}`, string(msgs[0].Value))
	assert.Equal(t, "evt-2", kafkax.HeaderValue(msgs[1].Headers, kafkax.HeaderEventID))
}

func TestNewPublisher_Defaults(t *testing.T) {
	p := NewPublisher(nil, nil, nil, PublisherConfig{Brokers: "k1:9092,k2:9092"})
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, p.brokers)
	assert.Equal(t, 50, p.batchSize)
	assert.Positive(t, p.pollEvery)
}
