package entities

import "time"

// AuditEntry represents a logged action in a session.
type AuditEntry struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Action    string         `json:"action"`
	RefID     string         `json:"ref_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
