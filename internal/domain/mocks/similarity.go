package mocks

import (
	"context"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
)

// SimilarityIndex is a mock implementation of ports.SimilarityIndex backed by
// a slice of canned results.
type SimilarityIndex struct {
	Indexed []entities.WorldEntity
	Results []ports.SimilarEntity
	Err     error
}

// NewSimilarityIndex creates a new mock index.
func NewSimilarityIndex() *SimilarityIndex {
	return &SimilarityIndex{}
}

// IndexEntity records the entity.
func (m *SimilarityIndex) IndexEntity(_ context.Context, entity *entities.WorldEntity) error {
	if m.Err != nil {
		return m.Err
	}
	m.Indexed = append(m.Indexed, *entity)
	return nil
}

// FindSimilar returns the canned results filtered by type.
func (m *SimilarityIndex) FindSimilar(_ context.Context, _ string, entityType entities.EntityType, limit int) ([]ports.SimilarEntity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []ports.SimilarEntity
	for _, r := range m.Results {
		if r.Type == entityType {
			out = append(out, r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// RemoveSession drops indexed entries for a session.
func (m *SimilarityIndex) RemoveSession(_ context.Context, sessionID string) error {
	if m.Err != nil {
		return m.Err
	}
	kept := m.Indexed[:0]
	for _, e := range m.Indexed {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	m.Indexed = kept
	return nil
}
