package mocks

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
)

// Classifier is a mock implementation of ports.TurnClassifier returning a
// fixed type.
type Classifier struct {
	Type entities.TurnType
	Err  error
}

// Classify returns the canned turn type.
func (m *Classifier) Classify(_ context.Context, _ string) (entities.TurnType, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Type == "" {
		return entities.TurnTypeAction, nil
	}
	return m.Type, nil
}
