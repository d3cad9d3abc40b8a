package handlers

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/services"
)

// TurnHandler handles turn lifecycle operations at the application layer.
type TurnHandler struct {
	sessions *services.SessionService
}

// NewTurnHandler creates a new TurnHandler.
func NewTurnHandler(sessions *services.SessionService) *TurnHandler {
	return &TurnHandler{
		sessions: sessions,
	}
}

// HandleStart advances the rotation and opens the next turn.
func (h *TurnHandler) HandleStart(ctx context.Context, sessionID string) Result[*entities.TurnState] {
	turn, err := h.sessions.StartNextTurn(ctx, sessionID)
	if err != nil {
		return Fail[*entities.TurnState](err)
	}
	return OK(turn)
}

// SubmitResult reports the submitted turn and whether its world changes
// committed immediately or were held on a conflict.
type SubmitResult struct {
	Turn    *entities.TurnState `json:"turn"`
	Applied bool                `json:"applied"`
}

// HandleSubmit records the owner's action for the current turn.
func (h *TurnHandler) HandleSubmit(ctx context.Context, sessionID, participantID string, action entities.TurnAction) Result[*SubmitResult] {
	turn, applied, err := h.sessions.SubmitTurnAction(ctx, sessionID, participantID, action)
	if err != nil {
		return Fail[*SubmitResult](err)
	}
	return OK(&SubmitResult{Turn: turn, Applied: applied})
}

// HandleComplete finishes the caller's turn.
func (h *TurnHandler) HandleComplete(ctx context.Context, sessionID, participantID string) Result[*entities.TurnState] {
	turn, err := h.sessions.CompleteTurn(ctx, sessionID, participantID)
	if err != nil {
		return Fail[*entities.TurnState](err)
	}
	return OK(turn)
}

// HandleSkip forfeits the caller's turn.
func (h *TurnHandler) HandleSkip(ctx context.Context, sessionID, participantID string) Result[*entities.TurnState] {
	turn, err := h.sessions.SkipTurn(ctx, sessionID, participantID)
	if err != nil {
		return Fail[*entities.TurnState](err)
	}
	return OK(turn)
}
