package entities

import "time"

// ParticipantRole describes what a participant may do in a session.
type ParticipantRole string

const (
	RoleDM        ParticipantRole = "dm"
	RolePlayer    ParticipantRole = "player"
	RoleSpectator ParticipantRole = "spectator"
)

// ParticipantStatus tracks a participant's membership state.
type ParticipantStatus string

const (
	ParticipantActive       ParticipantStatus = "active"
	ParticipantDisconnected ParticipantStatus = "disconnected"
	ParticipantLeft         ParticipantStatus = "left"
)

// Permissions enumerates the per-participant capability flags.
type Permissions struct {
	CanControlEntities bool `json:"can_control_entities"`
	CanEditWorld       bool `json:"can_edit_world"`
	CanResolveConflict bool `json:"can_resolve_conflict"`
}

// DefaultPermissions returns the capability set implied by a role.
func DefaultPermissions(role ParticipantRole) Permissions {
	switch role {
	case RoleDM:
		return Permissions{CanControlEntities: true, CanEditWorld: true, CanResolveConflict: true}
	case RolePlayer:
		return Permissions{CanControlEntities: true, CanEditWorld: true}
	default:
		return Permissions{}
	}
}

// SessionParticipant is a joined user in a session.
type SessionParticipant struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
	Role        ParticipantRole   `json:"role"`
	Status      ParticipantStatus `json:"status"`
	Permissions Permissions       `json:"permissions"`
	Connected   bool              `json:"connected"`
	TurnReady   bool              `json:"turn_ready"`
	JoinedAt    time.Time         `json:"joined_at"`
}

// Eligible reports whether the participant can hold a turn slot.
func (p *SessionParticipant) Eligible() bool {
	return p.Status == ParticipantActive && p.Permissions.CanControlEntities
}
