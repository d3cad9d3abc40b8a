package entities

import "time"

// ConflictType categorizes a detected inconsistency.
type ConflictType string

const (
	ConflictEntity       ConflictType = "entity_conflict"
	ConflictRelationship ConflictType = "relationship_conflict"
	ConflictProperty     ConflictType = "property_conflict"
	ConflictTurnAction   ConflictType = "character_action"
)

// ConflictSeverity ranks how urgently a conflict needs resolution.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// severityRank orders severities for sorting, highest first.
var severityRank = map[ConflictSeverity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns a comparable weight for the severity (higher is worse).
func (s ConflictSeverity) Rank() int { return severityRank[s] }

// ConflictStatus tracks a conflict through its lifecycle. Status only moves
// forward from open, never back.
type ConflictStatus string

const (
	ConflictOpen      ConflictStatus = "open"
	ConflictResolved  ConflictStatus = "resolved"
	ConflictEscalated ConflictStatus = "escalated"
	ConflictIgnored   ConflictStatus = "ignored"
	ConflictExpired   ConflictStatus = "expired"
)

// ResolutionMethod names how a conflict was closed.
type ResolutionMethod string

const (
	ResolutionWeighted   ResolutionMethod = "weighted"
	ResolutionMostRecent ResolutionMethod = "most_recent"
	ResolutionManual     ResolutionMethod = "manual"
)

// WorldConflict records a pairwise inconsistency between two facts,
// relationships or turns, tracked until resolution.
type WorldConflict struct {
	ID                   string           `json:"id"`
	SessionID            string           `json:"session_id"`
	Type                 ConflictType     `json:"type"`
	Severity             ConflictSeverity `json:"severity"`
	FirstRefID           string           `json:"first_ref_id"`
	SecondRefID          string           `json:"second_ref_id"`
	Description          string           `json:"description"`
	AffectedParticipants []string         `json:"affected_participants,omitempty"`
	Status               ConflictStatus   `json:"status"`
	Resolution           ResolutionMethod `json:"resolution,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	ResolvedAt           *time.Time       `json:"resolved_at,omitempty"`
}

// Closed reports whether the conflict has left the open state.
func (c *WorldConflict) Closed() bool {
	return c.Status != ConflictOpen
}

// Close transitions an open conflict to a terminal status. It reports false
// when the conflict was already closed; closed conflicts never reopen.
func (c *WorldConflict) Close(status ConflictStatus, method ResolutionMethod, at time.Time) bool {
	if c.Closed() || status == ConflictOpen {
		return false
	}
	c.Status = status
	c.Resolution = method
	c.ResolvedAt = &at
	return true
}
