// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
)

// TurnClassifier infers a turn-type classification from a free-text action
// description. Classification is a heuristic, not a contract: the turn state
// machine never branches on it, so implementations can be swapped without
// touching turn lifecycle.
type TurnClassifier interface {
	// Classify returns the turn type implied by the action description.
	Classify(ctx context.Context, description string) (entities.TurnType, error)
}
