package handlers

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/services"
)

// SessionHandler handles session lifecycle operations at the application
// layer.
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
	}
}

// HandleCreate creates a session with the host joined as DM.
func (h *SessionHandler) HandleCreate(ctx context.Context, input services.CreateSessionInput) Result[*services.SessionInfo] {
	info, err := h.sessions.CreateSession(ctx, input)
	if err != nil {
		return Fail[*services.SessionInfo](err)
	}
	return OK(info)
}

// HandleJoin adds a participant to a session.
func (h *SessionHandler) HandleJoin(ctx context.Context, sessionID string, input services.JoinSessionInput) Result[*entities.SessionParticipant] {
	participant, err := h.sessions.JoinSession(ctx, sessionID, input)
	if err != nil {
		return Fail[*entities.SessionParticipant](err)
	}
	return OK(participant)
}

// HandleLeave removes a participant from the rotation.
func (h *SessionHandler) HandleLeave(ctx context.Context, sessionID, participantID string) Result[struct{}] {
	if err := h.sessions.LeaveSession(ctx, sessionID, participantID); err != nil {
		return Fail[struct{}](err)
	}
	return OK(struct{}{})
}

// HandleDisconnect marks a participant's connection as dropped.
func (h *SessionHandler) HandleDisconnect(ctx context.Context, sessionID, participantID string) Result[struct{}] {
	if err := h.sessions.DisconnectParticipant(ctx, sessionID, participantID); err != nil {
		return Fail[struct{}](err)
	}
	return OK(struct{}{})
}

// HandleReconnect restores a disconnected participant.
func (h *SessionHandler) HandleReconnect(ctx context.Context, sessionID, participantID string) Result[struct{}] {
	if err := h.sessions.ReconnectParticipant(ctx, sessionID, participantID); err != nil {
		return Fail[struct{}](err)
	}
	return OK(struct{}{})
}

// HandleEnd closes a session.
func (h *SessionHandler) HandleEnd(ctx context.Context, sessionID string) Result[struct{}] {
	if err := h.sessions.EndSession(ctx, sessionID); err != nil {
		return Fail[struct{}](err)
	}
	return OK(struct{}{})
}

// HandleGet returns the read-only view of a session.
func (h *SessionHandler) HandleGet(sessionID string) Result[*services.SessionInfo] {
	info, err := h.sessions.GetSession(sessionID)
	if err != nil {
		return Fail[*services.SessionInfo](err)
	}
	return OK(info)
}

// HandleList returns every registered session.
func (h *SessionHandler) HandleList() Result[[]services.SessionInfo] {
	return OK(h.sessions.ListSessions())
}
