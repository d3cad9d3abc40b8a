package ports

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
)

// SimilarEntity is one candidate returned by a similarity lookup.
type SimilarEntity struct {
	EntityID string
	Name     string
	Type     entities.EntityType
	Score    float64 // 0..1, higher is more similar
}

// SimilarityIndex finds entities with names resembling a query. It is used by
// duplicate detection to retrieve candidates; the detector applies its own
// weighted scoring on top, so index implementations only need recall, not
// precision.
type SimilarityIndex interface {
	// IndexEntity makes an entity discoverable by similarity lookups.
	IndexEntity(ctx context.Context, entity *entities.WorldEntity) error

	// FindSimilar returns up to limit candidates of the given type whose
	// names resemble the query name.
	FindSimilar(ctx context.Context, name string, entityType entities.EntityType, limit int) ([]SimilarEntity, error)

	// RemoveSession drops all indexed entries for a session.
	RemoveSession(ctx context.Context, sessionID string) error
}
