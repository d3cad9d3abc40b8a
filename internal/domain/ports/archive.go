package ports

import (
	"context"
	"time"

	"github.com/ersonp/session-core/internal/domain/entities"
)

// SessionRecord is the durable summary of a session kept in the archive.
type SessionRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Participants int        `json:"participants"`
	TurnCount    int        `json:"turn_count"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// ArchiveDB is the injected persistence collaborator. The core keeps all live
// state in memory; when an archive is wired the facade records session
// metadata, completed turns, conflicts and an audit trail through it.
type ArchiveDB interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// SaveSession saves or updates a session record.
	SaveSession(ctx context.Context, rec *SessionRecord) error

	// FindSession finds a session record by ID.
	FindSession(ctx context.Context, sessionID string) (*SessionRecord, error)

	// ListSessions lists archived sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]SessionRecord, error)

	// SaveTurn appends a finished turn to the archive.
	SaveTurn(ctx context.Context, turn *entities.TurnState) error

	// FindTurns returns a session's archived turns ordered by turn number.
	FindTurns(ctx context.Context, sessionID string) ([]entities.TurnState, error)

	// SaveConflict saves or updates a conflict record.
	SaveConflict(ctx context.Context, conflict *entities.WorldConflict) error

	// FindConflicts returns a session's archived conflicts.
	FindConflicts(ctx context.Context, sessionID string) ([]entities.WorldConflict, error)

	// SaveSnapshot stores a world snapshot export.
	SaveSnapshot(ctx context.Context, snapshot *entities.WorldSnapshot) error

	// FindLatestSnapshot returns the most recent snapshot for a session,
	// or nil when none was archived.
	FindLatestSnapshot(ctx context.Context, sessionID string) (*entities.WorldSnapshot, error)

	// LogAction logs an action to the session audit log.
	LogAction(ctx context.Context, sessionID, action, refID string, details map[string]any) error

	// FindAuditLog finds audit entries for a session, newest first.
	FindAuditLog(ctx context.Context, sessionID string, limit int) ([]entities.AuditEntry, error)
}
