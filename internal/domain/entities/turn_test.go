package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTurnStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   TurnStatus
		terminal bool
	}{
		{TurnPending, false},
		{TurnActive, false},
		{TurnCompleted, true},
		{TurnSkipped, true},
		{TurnTimeout, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestTurnStatus_AcceptsAction(t *testing.T) {
	assert.True(t, TurnPending.AcceptsAction())
	assert.True(t, TurnActive.AcceptsAction())
	assert.False(t, TurnCompleted.AcceptsAction())
	assert.False(t, TurnSkipped.AcceptsAction())
	assert.False(t, TurnTimeout.AcceptsAction())
}

func TestTurnState_TimeRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	turn := TurnState{EndsAt: now.Add(5 * time.Minute)}

	assert.Equal(t, 5*time.Minute, turn.TimeRemaining(now))
	assert.Equal(t, time.Minute, turn.TimeRemaining(now.Add(4*time.Minute)))

	// Clamped at zero past the deadline.
	assert.Equal(t, time.Duration(0), turn.TimeRemaining(now.Add(5*time.Minute)))
	assert.Equal(t, time.Duration(0), turn.TimeRemaining(now.Add(time.Hour)))
}

func TestTurnOrder_IndexOf(t *testing.T) {
	order := TurnOrder{Order: []string{"dm", "a", "b"}}
	assert.Equal(t, 0, order.IndexOf("dm"))
	assert.Equal(t, 2, order.IndexOf("b"))
	assert.Equal(t, -1, order.IndexOf("missing"))
}
