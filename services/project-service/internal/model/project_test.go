package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanReserve(t *testing.T) {
	cases := []struct {
		name string
		p    Project
		want error
	}{
		{"free slot", Project{Capacity: 2, Allocated: 1, Status: StatusActive}, nil},
		{"full", Project{Capacity: 2, Allocated: 2, Status: StatusActive}, ErrCapacityExceeded},
		{"zero capacity", Project{Capacity: 0, Status: StatusActive}, ErrCapacityExceeded},
		{"completed wins over full", Project{Capacity: 1, Allocated: 1, Status: StatusCompleted}, ErrProjectClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.p.CanReserve(), tc.want)
		})
	}
}

func TestPatchApply(t *testing.T) {
	p := Project{Name: "Apollo", Capacity: 5, Allocated: 3}

	low := 2
	_, err := Patch{Capacity: &low}.Apply(&p)
	require.ErrorIs(t, err, ErrCapacityTooLow)
	assert.Equal(t, 5, p.Capacity)

	capacity := 3
	name := "Artemis"
	changed, err := Patch{Capacity: &capacity, Name: &name}.Apply(&p)
	require.NoError(t, err)
	assert.Equal(t, []string{"capacity", "name"}, changed)
	assert.Equal(t, 0, p.Available())
}
