// Package handlers adapts the session facade for the transport layer: every
// mutating operation returns a uniform Result envelope so failures map to
// protocol responses without inspecting internal errors.
package handlers

import (
	"errors"

	"github.com/ersonp/session-core/internal/domain/services"
)

// ErrorCode discriminates failure families for the transport layer.
type ErrorCode string

const (
	CodeNotFound      ErrorCode = "not_found"
	CodeValidation    ErrorCode = "validation"
	CodeStateConflict ErrorCode = "state_conflict"
	CodeInternal      ErrorCode = "internal"
)

// Result is the uniform success/failure envelope returned by every handler
// operation.
type Result[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
}

// OK wraps a successful payload.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail wraps an error into the envelope with its taxonomy code.
func Fail[T any](err error) Result[T] {
	return Result[T]{Success: false, Error: err.Error(), Code: codeFor(err)}
}

// codeFor maps sentinel errors to taxonomy codes.
func codeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrParticipantNotFound),
		errors.Is(err, services.ErrEntityNotFound),
		errors.Is(err, services.ErrConflictNotFound):
		return CodeNotFound
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidRelationship):
		return CodeValidation
	case errors.Is(err, services.ErrNotYourTurn),
		errors.Is(err, services.ErrTurnNotAcceptingActions),
		errors.Is(err, services.ErrTurnAlreadyCompleted),
		errors.Is(err, services.ErrTurnInProgress),
		errors.Is(err, services.ErrNoEligibleParticipants),
		errors.Is(err, services.ErrSessionFull),
		errors.Is(err, services.ErrDuplicateJoin),
		errors.Is(err, services.ErrSessionEnded):
		return CodeStateConflict
	default:
		return CodeInternal
	}
}
