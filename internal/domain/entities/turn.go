package entities

import "time"

// TurnStatus tracks one turn slot through its lifecycle.
// pending and active are the only states that accept a submitted action;
// completed, skipped and timeout are terminal.
type TurnStatus string

const (
	TurnPending   TurnStatus = "pending"
	TurnActive    TurnStatus = "active"
	TurnCompleted TurnStatus = "completed"
	TurnSkipped   TurnStatus = "skipped"
	TurnTimeout   TurnStatus = "timeout"
)

// Terminal reports whether the status is a terminal state.
func (s TurnStatus) Terminal() bool {
	switch s {
	case TurnCompleted, TurnSkipped, TurnTimeout:
		return true
	}
	return false
}

// AcceptsAction reports whether a turn in this status may receive an action.
func (s TurnStatus) AcceptsAction() bool {
	return s == TurnPending || s == TurnActive
}

// TurnType classifies the submitted action's nature.
type TurnType string

const (
	TurnTypeCombat      TurnType = "combat"
	TurnTypeMovement    TurnType = "movement"
	TurnTypeDialogue    TurnType = "dialogue"
	TurnTypeRest        TurnType = "rest"
	TurnTypeExploration TurnType = "exploration"
	TurnTypeSocial      TurnType = "social"
	TurnTypeAction      TurnType = "action" // default classification
)

// TurnAction is the payload a participant submits for their turn.
type TurnAction struct {
	Description string        `json:"description"`
	TargetID    string        `json:"target_id,omitempty"`
	Changes     []WorldChange `json:"changes,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// TurnState is one participant's turn slot. TurnNumber is strictly increasing
// per session, starting at 1.
type TurnState struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	TurnNumber    int         `json:"turn_number"`
	ParticipantID string      `json:"participant_id"`
	Type          TurnType    `json:"type,omitempty"`
	Action        *TurnAction `json:"action,omitempty"`
	Status        TurnStatus  `json:"status"`
	StartedAt     time.Time   `json:"started_at"`
	EndsAt        time.Time   `json:"ends_at"`
	EndedAt       *time.Time  `json:"ended_at,omitempty"`
}

// TimeRemaining returns the time left before the deadline, clamped at zero.
func (t *TurnState) TimeRemaining(now time.Time) time.Duration {
	if !now.Before(t.EndsAt) {
		return 0
	}
	return t.EndsAt.Sub(now)
}

// TurnOrder is the rotation of turn-eligible participants.
type TurnOrder struct {
	Order        []string `json:"order"` // participant ids
	CurrentIndex int      `json:"current_index"`
	CycleCount   int      `json:"cycle_count"`
}

// IndexOf returns the position of a participant in the rotation, or -1.
func (o *TurnOrder) IndexOf(participantID string) int {
	for i, id := range o.Order {
		if id == participantID {
			return i
		}
	}
	return -1
}
