package services

import "errors"

// Sentinel errors surfaced across the public boundary. Handlers map these to
// taxonomy codes; they are never thrown past the facade.
var (
	// Not-found family.
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrEntityNotFound      = errors.New("entity not found")
	ErrConflictNotFound    = errors.New("conflict not found")

	// Validation family.
	ErrInvalidRelationship = errors.New("relationship type not permitted for entity type")
	ErrInvalidInput        = errors.New("invalid input")

	// State-conflict family.
	ErrNotYourTurn             = errors.New("not your turn")
	ErrTurnNotAcceptingActions = errors.New("turn is not accepting actions")
	ErrTurnAlreadyCompleted    = errors.New("turn already completed")
	ErrTurnInProgress          = errors.New("a turn is already in progress")
	ErrNoEligibleParticipants  = errors.New("no eligible participants")
	ErrSessionFull             = errors.New("session is full")
	ErrDuplicateJoin           = errors.New("user already joined this session")
	ErrSessionEnded            = errors.New("session has ended")
)
