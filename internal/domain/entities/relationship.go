package entities

import "time"

// RelationType defines the kind of relationship between entities.
type RelationType string

const (
	RelationParentOf   RelationType = "parent_of"
	RelationChildOf    RelationType = "child_of"
	RelationSiblingOf  RelationType = "sibling_of"
	RelationMarriedTo  RelationType = "married_to"
	RelationFriendOf   RelationType = "friend_of"
	RelationAlliedWith RelationType = "allied_with"
	RelationEnemyOf    RelationType = "enemy_of"
	RelationLocatedIn  RelationType = "located_in"
	RelationOwns       RelationType = "owns"
	RelationMemberOf   RelationType = "member_of"
	RelationLeaderOf   RelationType = "leader_of"
	RelationCreated    RelationType = "created"
)

// WorldRelationship represents a directed connection between two entities.
// Mutual relationships are stored as two edges that reference each other via
// ReciprocalID. Relationships are invalidated by setting ValidUntil, never
// deleted.
type WorldRelationship struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	SubjectID    string       `json:"subject_id"`
	ObjectID     string       `json:"object_id"`
	Type         RelationType `json:"type"`
	Strength     float64      `json:"strength"` // -1 (hostile) .. 1 (devoted)
	Mutual       bool         `json:"mutual"`
	ReciprocalID string       `json:"reciprocal_id,omitempty"`
	Confidence   float64      `json:"confidence"`
	ValidFrom    time.Time    `json:"valid_from"`
	ValidUntil   *time.Time   `json:"valid_until,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ValidAt reports whether the relationship's validity window contains the instant.
func (r *WorldRelationship) ValidAt(at time.Time) bool {
	if at.Before(r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && at.After(*r.ValidUntil) {
		return false
	}
	return true
}

// ClampStrength forces a relationship strength into the valid [-1,1] range.
func ClampStrength(s float64) float64 {
	if s < -1 {
		return -1
	}
	if s > 1 {
		return 1
	}
	return s
}
