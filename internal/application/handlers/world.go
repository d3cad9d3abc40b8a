package handlers

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/services"
)

// WorldHandler handles world graph operations at the application layer.
type WorldHandler struct {
	sessions *services.SessionService
}

// NewWorldHandler creates a new WorldHandler.
func NewWorldHandler(sessions *services.SessionService) *WorldHandler {
	return &WorldHandler{
		sessions: sessions,
	}
}

// HandleCreateEntity adds an entity to the session's world.
func (h *WorldHandler) HandleCreateEntity(ctx context.Context, sessionID string, input services.CreateEntityInput) Result[*entities.WorldEntity] {
	entity, err := h.sessions.CreateEntity(ctx, sessionID, input)
	if err != nil {
		return Fail[*entities.WorldEntity](err)
	}
	return OK(entity)
}

// HandleCreateRelationship links two entities.
func (h *WorldHandler) HandleCreateRelationship(ctx context.Context, sessionID string, input services.CreateRelationshipInput) Result[*entities.WorldRelationship] {
	rel, err := h.sessions.CreateRelationship(ctx, sessionID, input)
	if err != nil {
		return Fail[*entities.WorldRelationship](err)
	}
	return OK(rel)
}

// HandleUpdateFact records a property assertion.
func (h *WorldHandler) HandleUpdateFact(ctx context.Context, sessionID string, input services.UpdateFactInput) Result[*entities.WorldFact] {
	fact, err := h.sessions.UpdateFact(ctx, sessionID, input)
	if err != nil {
		return Fail[*entities.WorldFact](err)
	}
	return OK(fact)
}

// HandleMoveEntity relocates an entity.
func (h *WorldHandler) HandleMoveEntity(ctx context.Context, sessionID, entityID, location string) Result[struct{}] {
	if err := h.sessions.MoveEntity(ctx, sessionID, entityID, location); err != nil {
		return Fail[struct{}](err)
	}
	return OK(struct{}{})
}

// EntityListResult contains the result of an entity query.
type EntityListResult struct {
	Entities []entities.WorldEntity `json:"entities"`
	Total    int                    `json:"total"`
}

// HandleQueryEntities filters the session's entities.
func (h *WorldHandler) HandleQueryEntities(sessionID string, q services.EntityQuery) Result[*EntityListResult] {
	list, err := h.sessions.QueryEntities(sessionID, q)
	if err != nil {
		return Fail[*EntityListResult](err)
	}
	return OK(&EntityListResult{Entities: list, Total: len(list)})
}

// HandleQueryRelationships filters the session's relationships.
func (h *WorldHandler) HandleQueryRelationships(sessionID string, q services.RelationshipQuery) Result[[]entities.WorldRelationship] {
	list, err := h.sessions.QueryRelationships(sessionID, q)
	if err != nil {
		return Fail[[]entities.WorldRelationship](err)
	}
	return OK(list)
}

// HandleQueryFacts filters the session's facts.
func (h *WorldHandler) HandleQueryFacts(sessionID string, q services.FactQuery) Result[[]entities.WorldFact] {
	list, err := h.sessions.QueryFacts(sessionID, q)
	if err != nil {
		return Fail[[]entities.WorldFact](err)
	}
	return OK(list)
}

// HandleAddRule registers a declarative validation rule.
func (h *WorldHandler) HandleAddRule(sessionID string, rule entities.WorldRule) Result[struct{}] {
	if err := h.sessions.AddRule(sessionID, rule); err != nil {
		return Fail[struct{}](err)
	}
	return OK(struct{}{})
}

// HandleValidate runs a full consistency scan.
func (h *WorldHandler) HandleValidate(sessionID string) Result[entities.ValidationReport] {
	report, err := h.sessions.ValidateWorld(sessionID)
	if err != nil {
		return Fail[entities.ValidationReport](err)
	}
	return OK(report)
}

// HandleSnapshot exports the session's world.
func (h *WorldHandler) HandleSnapshot(ctx context.Context, sessionID string) Result[*entities.WorldSnapshot] {
	snapshot, err := h.sessions.SnapshotWorld(ctx, sessionID)
	if err != nil {
		return Fail[*entities.WorldSnapshot](err)
	}
	return OK(snapshot)
}
