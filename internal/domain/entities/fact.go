// Package entities contains core domain data structures.
package entities

import "time"

// ConfidenceSample records one point in a fact's confidence history.
type ConfidenceSample struct {
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source,omitempty"` // participant id or "system"
	RecordedAt time.Time `json:"recorded_at"`
}

// WorldFact is a timestamped assertion about one property of an entity.
// Superseded facts are kept for audit and marked invalid from a point in
// time; contradiction links between facts are always symmetric.
type WorldFact struct {
	ID                string             `json:"id"`
	SessionID         string             `json:"session_id"`
	SubjectID         string             `json:"subject_id"`
	Key               string             `json:"key"`
	Value             any                `json:"value"`
	PreviousValue     any                `json:"previous_value,omitempty"`
	Confidence        float64            `json:"confidence"`
	ConfidenceHistory []ConfidenceSample `json:"confidence_history,omitempty"`
	ContradictsIDs    []string           `json:"contradicts_ids,omitempty"`
	RecordedBy        string             `json:"recorded_by,omitempty"`
	ValidFrom         time.Time          `json:"valid_from"`
	ValidUntil        *time.Time         `json:"valid_until,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// ValidAt reports whether the fact's validity window contains the instant.
func (f *WorldFact) ValidAt(at time.Time) bool {
	if at.Before(f.ValidFrom) {
		return false
	}
	if f.ValidUntil != nil && at.After(*f.ValidUntil) {
		return false
	}
	return true
}

// Contradicts reports whether the fact already links the given fact id as a
// contradiction.
func (f *WorldFact) Contradicts(id string) bool {
	for _, c := range f.ContradictsIDs {
		if c == id {
			return true
		}
	}
	return false
}
