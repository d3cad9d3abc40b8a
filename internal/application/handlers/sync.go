package handlers

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/services"
)

// SyncHandler handles synchronization operations at the application layer.
type SyncHandler struct {
	sessions *services.SessionService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(sessions *services.SessionService) *SyncHandler {
	return &SyncHandler{
		sessions: sessions,
	}
}

// ProcessResult reports whether a change batch committed or was held.
type ProcessResult struct {
	Applied bool `json:"applied"`
}

// HandleProcessChanges runs an out-of-turn change batch through the
// synchronization pipeline.
func (h *SyncHandler) HandleProcessChanges(ctx context.Context, sessionID, participantID string, changes []entities.ChangePayload) Result[*ProcessResult] {
	applied, err := h.sessions.ProcessWorldChanges(ctx, sessionID, participantID, changes)
	if err != nil {
		return Fail[*ProcessResult](err)
	}
	return OK(&ProcessResult{Applied: applied})
}

// HandleRequestSync pulls the delta a participant is missing.
func (h *SyncHandler) HandleRequestSync(ctx context.Context, sessionID, participantID string, fromTurn int, includeFull bool) Result[*entities.SyncDelta] {
	delta, err := h.sessions.RequestSynchronization(ctx, sessionID, participantID, fromTurn, includeFull)
	if err != nil {
		return Fail[*entities.SyncDelta](err)
	}
	return OK(delta)
}

// HandleForceResync resets every participant to non-current.
func (h *SyncHandler) HandleForceResync(ctx context.Context, sessionID string) Result[struct{}] {
	if err := h.sessions.ForceResynchronization(ctx, sessionID); err != nil {
		return Fail[struct{}](err)
	}
	return OK(struct{}{})
}

// HandleHealth reports synchronization diagnostics.
func (h *SyncHandler) HandleHealth(sessionID string) Result[entities.SyncHealth] {
	health, err := h.sessions.SyncHealth(sessionID)
	if err != nil {
		return Fail[entities.SyncHealth](err)
	}
	return OK(health)
}

// HandleParticipantSync returns a participant's sync cursor.
func (h *SyncHandler) HandleParticipantSync(sessionID, participantID string) Result[*entities.ParticipantSync] {
	sync, err := h.sessions.ParticipantSync(sessionID, participantID)
	if err != nil {
		return Fail[*entities.ParticipantSync](err)
	}
	return OK(sync)
}
