package entities

import "time"

// ParticipantSync is the per-participant synchronization cursor.
type ParticipantSync struct {
	ParticipantID  string        `json:"participant_id"`
	LastSyncedTurn int           `json:"last_synced_turn"`
	IsCurrent      bool          `json:"is_current"`
	PendingChanges []WorldChange `json:"pending_changes,omitempty"`
	ConflictIDs    []string      `json:"conflict_ids,omitempty"`
	LastSyncAt     *time.Time    `json:"last_sync_at,omitempty"`
}

// SyncHealth summarizes a session's synchronization diagnostics.
type SyncHealth struct {
	Progress       float64  `json:"progress"`
	IsSynchronized bool     `json:"is_synchronized"`
	PendingChanges int      `json:"pending_changes"`
	OpenConflicts  int      `json:"open_conflicts"`
	Degraded       bool     `json:"degraded"`
	Issues         []string `json:"issues,omitempty"`
}

// SyncDelta is the response to a synchronization request. Full syncs carry a
// world snapshot; partial syncs only the turns and conflicts the participant
// missed.
type SyncDelta struct {
	Full        bool            `json:"full"`
	Snapshot    *WorldSnapshot  `json:"snapshot,omitempty"`
	MissedTurns []TurnState     `json:"missed_turns,omitempty"`
	Conflicts   []WorldConflict `json:"conflicts,omitempty"`
	SyncedTurn  int             `json:"synced_turn"`
}
