package entities

import (
	"strings"
	"time"
)

// EntityType categorizes a world entity.
type EntityType string

// Entity types recognized by the world graph.
const (
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityItem         EntityType = "item"
	EntityOrganization EntityType = "organization"
	EntityCreature     EntityType = "creature"
	EntityEvent        EntityType = "event"
	EntityConcept      EntityType = "concept"
)

// EntityStatus describes the narrative state of an entity. Entities are never
// deleted from the graph, only transitioned between statuses.
type EntityStatus string

const (
	StatusUnknown   EntityStatus = "unknown"
	StatusAlive     EntityStatus = "alive"
	StatusDead      EntityStatus = "dead"
	StatusActive    EntityStatus = "active"
	StatusInactive  EntityStatus = "inactive"
	StatusDestroyed EntityStatus = "destroyed"
)

// DefaultConfidence is assigned to records created without an explicit
// confidence score.
const DefaultConfidence = 0.5

// LocationEntry records one stop in an entity's movement history.
type LocationEntry struct {
	Location  string    `json:"location"`
	ArrivedAt time.Time `json:"arrived_at"`
}

// WorldEntity represents a person, place, item, organization, creature, event
// or concept in the shared fiction. Facts mutate its property map; the entity
// record itself carries identity and coarse state.
type WorldEntity struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	Type            EntityType      `json:"type"`
	Name            string          `json:"name"`
	NormalizedName  string          `json:"normalized_name"`
	Aliases         []string        `json:"aliases,omitempty"`
	Status          EntityStatus    `json:"status"`
	Confidence      float64         `json:"confidence"`
	Properties      map[string]any  `json:"properties,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	Location        string          `json:"location,omitempty"`
	LocationHistory []LocationEntry `json:"location_history,omitempty"`
	ValidFrom       time.Time       `json:"valid_from"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ValidAt reports whether the entity's lifespan window contains the instant.
func (e *WorldEntity) ValidAt(at time.Time) bool {
	if at.Before(e.ValidFrom) {
		return false
	}
	if e.ValidUntil != nil && at.After(*e.ValidUntil) {
		return false
	}
	return true
}

// HasTag reports whether the entity carries the given tag.
func (e *WorldEntity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeName converts a name to lowercase for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ClampConfidence forces a confidence score into the valid [0,1] range.
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
