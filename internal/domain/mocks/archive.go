// Package mocks provides in-memory implementations of the domain ports for
// tests.
package mocks

import (
	"context"
	"sort"
	"time"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
)

// ArchiveDB is a mock implementation of ports.ArchiveDB.
type ArchiveDB struct {
	Sessions  map[string]*ports.SessionRecord
	Turns     map[string][]entities.TurnState
	Conflicts map[string][]entities.WorldConflict
	Snapshots map[string][]entities.WorldSnapshot
	Audit     []entities.AuditEntry
	Err       error

	nextAuditID int64
}

// NewArchiveDB creates a new mock ArchiveDB.
func NewArchiveDB() *ArchiveDB {
	return &ArchiveDB{
		Sessions:  make(map[string]*ports.SessionRecord),
		Turns:     make(map[string][]entities.TurnState),
		Conflicts: make(map[string][]entities.WorldConflict),
		Snapshots: make(map[string][]entities.WorldSnapshot),
	}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *ArchiveDB) EnsureSchema(_ context.Context) error { return m.Err }

// Close closes the database connection.
func (m *ArchiveDB) Close() error { return nil }

// SaveSession saves or updates a session record.
func (m *ArchiveDB) SaveSession(_ context.Context, rec *ports.SessionRecord) error {
	if m.Err != nil {
		return m.Err
	}
	copied := *rec
	m.Sessions[rec.ID] = &copied
	return nil
}

// FindSession finds a session record by ID.
func (m *ArchiveDB) FindSession(_ context.Context, sessionID string) (*ports.SessionRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Sessions[sessionID], nil
}

// ListSessions lists archived sessions, newest first.
func (m *ArchiveDB) ListSessions(_ context.Context, limit int) ([]ports.SessionRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]ports.SessionRecord, 0, len(m.Sessions))
	for _, rec := range m.Sessions {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveTurn appends a finished turn to the archive.
func (m *ArchiveDB) SaveTurn(_ context.Context, turn *entities.TurnState) error {
	if m.Err != nil {
		return m.Err
	}
	m.Turns[turn.SessionID] = append(m.Turns[turn.SessionID], *turn)
	return nil
}

// FindTurns returns a session's archived turns ordered by turn number.
func (m *ArchiveDB) FindTurns(_ context.Context, sessionID string) ([]entities.TurnState, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := append([]entities.TurnState(nil), m.Turns[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].TurnNumber < out[j].TurnNumber })
	return out, nil
}

// SaveConflict saves or updates a conflict record.
func (m *ArchiveDB) SaveConflict(_ context.Context, conflict *entities.WorldConflict) error {
	if m.Err != nil {
		return m.Err
	}
	existing := m.Conflicts[conflict.SessionID]
	for i := range existing {
		if existing[i].ID == conflict.ID {
			existing[i] = *conflict
			return nil
		}
	}
	m.Conflicts[conflict.SessionID] = append(existing, *conflict)
	return nil
}

// FindConflicts returns a session's archived conflicts.
func (m *ArchiveDB) FindConflicts(_ context.Context, sessionID string) ([]entities.WorldConflict, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]entities.WorldConflict(nil), m.Conflicts[sessionID]...), nil
}

// SaveSnapshot stores a world snapshot export.
func (m *ArchiveDB) SaveSnapshot(_ context.Context, snapshot *entities.WorldSnapshot) error {
	if m.Err != nil {
		return m.Err
	}
	m.Snapshots[snapshot.SessionID] = append(m.Snapshots[snapshot.SessionID], *snapshot)
	return nil
}

// FindLatestSnapshot returns the most recent snapshot for a session.
func (m *ArchiveDB) FindLatestSnapshot(_ context.Context, sessionID string) (*entities.WorldSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	snaps := m.Snapshots[sessionID]
	if len(snaps) == 0 {
		return nil, nil
	}
	latest := snaps[len(snaps)-1]
	return &latest, nil
}

// LogAction logs an action to the session audit log.
func (m *ArchiveDB) LogAction(_ context.Context, sessionID, action, refID string, details map[string]any) error {
	if m.Err != nil {
		return m.Err
	}
	m.nextAuditID++
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:        m.nextAuditID,
		SessionID: sessionID,
		Action:    action,
		RefID:     refID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

// FindAuditLog finds audit entries for a session, newest first.
func (m *ArchiveDB) FindAuditLog(_ context.Context, sessionID string, limit int) ([]entities.AuditEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if m.Audit[i].SessionID == sessionID {
			out = append(out, m.Audit[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
