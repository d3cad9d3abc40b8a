package handlers

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/services"
)

// ConflictHandler handles conflict review and resolution at the application
// layer.
type ConflictHandler struct {
	sessions *services.SessionService
}

// NewConflictHandler creates a new ConflictHandler.
func NewConflictHandler(sessions *services.SessionService) *ConflictHandler {
	return &ConflictHandler{
		sessions: sessions,
	}
}

// ConflictListResult contains the result of listing open conflicts.
type ConflictListResult struct {
	Conflicts []entities.WorldConflict `json:"conflicts"`
	Total     int                      `json:"total"`
}

// HandleListOpen returns the session's unresolved conflicts.
func (h *ConflictHandler) HandleListOpen(sessionID string) Result[*ConflictListResult] {
	open, err := h.sessions.OpenConflicts(sessionID)
	if err != nil {
		return Fail[*ConflictListResult](err)
	}
	return OK(&ConflictListResult{Conflicts: open, Total: len(open)})
}

// ResolveResult reports how many conflicts a strategy closed.
type ResolveResult struct {
	Resolved int `json:"resolved"`
}

// HandleResolveAll applies a resolution strategy to every open conflict.
func (h *ConflictHandler) HandleResolveAll(ctx context.Context, sessionID string, method entities.ResolutionMethod) Result[*ResolveResult] {
	resolved, err := h.sessions.ResolveConflicts(ctx, sessionID, method)
	if err != nil {
		return Fail[*ResolveResult](err)
	}
	return OK(&ResolveResult{Resolved: resolved})
}

// HandleResolve closes a single conflict with an operator-chosen status.
func (h *ConflictHandler) HandleResolve(ctx context.Context, sessionID, conflictID string, status entities.ConflictStatus) Result[*entities.WorldConflict] {
	conflict, err := h.sessions.ResolveConflict(ctx, sessionID, conflictID, status)
	if err != nil {
		return Fail[*entities.WorldConflict](err)
	}
	return OK(conflict)
}
