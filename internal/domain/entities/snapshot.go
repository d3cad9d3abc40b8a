package entities

import "time"

// WorldMetrics aggregates counts for a snapshot.
type WorldMetrics struct {
	EntityCount       int     `json:"entity_count"`
	RelationshipCount int     `json:"relationship_count"`
	FactCount         int     `json:"fact_count"`
	OpenConflicts     int     `json:"open_conflicts"`
	AverageConfidence float64 `json:"average_confidence"`
}

// WorldSnapshot is an immutable point-in-time export of a session's world
// graph.
type WorldSnapshot struct {
	SessionID     string              `json:"session_id"`
	TakenAt       time.Time           `json:"taken_at"`
	Entities      []WorldEntity       `json:"entities"`
	Relationships []WorldRelationship `json:"relationships"`
	Facts         []WorldFact         `json:"facts"`
	Conflicts     []WorldConflict     `json:"conflicts"`
	Metrics       WorldMetrics        `json:"metrics"`
}
