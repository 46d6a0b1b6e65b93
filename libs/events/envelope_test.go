package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_DecodesVariant(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	env, err := NewEnvelope(EmployeeUpdated{
		EmployeeID: "e-1",
		FullName:   "Ada Lovelace",
		Email:      "ada@example.com",
		Changed:    []string{"full_name"},
	}, 3, at)
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, TypeEmployeeUpdated, env.EventType)
	assert.Equal(t, "e-1", env.AggregateID)
	assert.Equal(t, int64(3), env.Version)

	raw, err := env.Marshal()
	require.NoError(t, err)
	parsed, err := Parse(raw)
	require.NoError(t, err)

	evt, err := parsed.Decode()
	require.NoError(t, err)
	updated, ok := evt.(EmployeeUpdated)
	require.True(t, ok, "expected EmployeeUpdated, got %T", evt)
	assert.Equal(t, "Ada Lovelace", updated.FullName)
	assert.True(t, parsed.OccurredAt.Equal(at))
}

func TestEnvelope_UnknownType(t *testing.T) {
	env := Envelope{EventID: "x", EventType: "payroll.run.v1", AggregateID: "a", Payload: []byte(`{}`)}
	_, err := env.Decode()
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte(`{"event_id":"1","event_type":"employee.created.v1"}`))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestKnownTypes_AllDecode(t *testing.T) {
	for _, typ := range KnownTypes() {
		env := Envelope{EventID: "1", EventType: typ, AggregateID: "a", Payload: []byte(`{}`)}
		evt, err := env.Decode()
		require.NoError(t, err, typ)
		assert.Equal(t, typ, evt.EventType())
	}
}
