// Package sqlite provides a SQLite implementation of the ArchiveDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
	"github.com/ersonp/session-core/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Repository implements ports.ArchiveDB using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Session records (durable summaries of live sessions)
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		participants INTEGER NOT NULL DEFAULT 0,
		turn_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	-- Finished turns (append-only turn history)
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		participant_id TEXT NOT NULL,
		type TEXT,
		status TEXT NOT NULL,
		action TEXT,
		started_at TIMESTAMP NOT NULL,
		ends_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		UNIQUE(session_id, turn_number)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);

	-- Conflicts (saved on detection, updated on resolution)
	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		first_ref_id TEXT NOT NULL,
		second_ref_id TEXT NOT NULL,
		description TEXT,
		affected TEXT,
		status TEXT NOT NULL,
		resolution TEXT,
		created_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conflicts_session ON conflicts(session_id);
	CREATE INDEX IF NOT EXISTS idx_conflicts_status ON conflicts(status);

	-- World snapshot exports (JSON blobs, newest wins on read)
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		taken_at TIMESTAMP NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, taken_at);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		action TEXT NOT NULL,
		ref_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_session ON audit_log(session_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveSession saves or updates a session record.
func (r *Repository) SaveSession(ctx context.Context, rec *ports.SessionRecord) error {
	query := `
		INSERT INTO sessions (id, name, status, participants, turn_count, created_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			participants = excluded.participants,
			turn_count = excluded.turn_count,
			ended_at = excluded.ended_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		rec.Status,
		rec.Participants,
		rec.TurnCount,
		rec.CreatedAt,
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// FindSession finds a session record by ID.
func (r *Repository) FindSession(ctx context.Context, sessionID string) (*ports.SessionRecord, error) {
	query := `
		SELECT id, name, status, participants, turn_count, created_at, ended_at
		FROM sessions
		WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, query, sessionID)

	var rec ports.SessionRecord
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Status,
		&rec.Participants,
		&rec.TurnCount,
		&rec.CreatedAt,
		&rec.EndedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return &rec, nil
}

// ListSessions lists archived sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]ports.SessionRecord, error) {
	query := `
		SELECT id, name, status, participants, turn_count, created_at, ended_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var records []ports.SessionRecord
	for rows.Next() {
		var rec ports.SessionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.Status,
			&rec.Participants,
			&rec.TurnCount,
			&rec.CreatedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveTurn appends a finished turn to the archive.
func (r *Repository) SaveTurn(ctx context.Context, turn *entities.TurnState) error {
	var actionJSON sql.NullString
	if turn.Action != nil {
		data, err := json.Marshal(turn.Action)
		if err != nil {
			return fmt.Errorf("marshaling turn action: %w", err)
		}
		actionJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO turns (id, session_id, turn_number, participant_id, type, status, action, started_at, ends_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, turn_number) DO UPDATE SET
			status = excluded.status,
			type = excluded.type,
			action = excluded.action,
			ended_at = excluded.ended_at
	`
	_, err := r.db.ExecContext(ctx, query,
		turn.ID,
		turn.SessionID,
		turn.TurnNumber,
		turn.ParticipantID,
		string(turn.Type),
		string(turn.Status),
		actionJSON,
		turn.StartedAt,
		turn.EndsAt,
		turn.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}
	return nil
}

// FindTurns returns a session's archived turns ordered by turn number.
func (r *Repository) FindTurns(ctx context.Context, sessionID string) ([]entities.TurnState, error) {
	query := `
		SELECT id, session_id, turn_number, participant_id, type, status, action, started_at, ends_at, ended_at
		FROM turns
		WHERE session_id = ?
		ORDER BY turn_number
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("finding turns: %w", err)
	}
	defer rows.Close()

	var turns []entities.TurnState
	for rows.Next() {
		var turn entities.TurnState
		var actionJSON sql.NullString
		if err := rows.Scan(
			&turn.ID,
			&turn.SessionID,
			&turn.TurnNumber,
			&turn.ParticipantID,
			&turn.Type,
			&turn.Status,
			&actionJSON,
			&turn.StartedAt,
			&turn.EndsAt,
			&turn.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if actionJSON.Valid {
			var action entities.TurnAction
			if err := json.Unmarshal([]byte(actionJSON.String), &action); err != nil {
				return nil, fmt.Errorf("unmarshaling turn action: %w", err)
			}
			turn.Action = &action
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// SaveConflict saves or updates a conflict record.
func (r *Repository) SaveConflict(ctx context.Context, conflict *entities.WorldConflict) error {
	var affectedJSON sql.NullString
	if len(conflict.AffectedParticipants) > 0 {
		data, err := json.Marshal(conflict.AffectedParticipants)
		if err != nil {
			return fmt.Errorf("marshaling affected participants: %w", err)
		}
		affectedJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO conflicts (id, session_id, type, severity, first_ref_id, second_ref_id, description, affected, status, resolution, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			resolution = excluded.resolution,
			resolved_at = excluded.resolved_at
	`
	_, err := r.db.ExecContext(ctx, query,
		conflict.ID,
		conflict.SessionID,
		string(conflict.Type),
		string(conflict.Severity),
		conflict.FirstRefID,
		conflict.SecondRefID,
		conflict.Description,
		affectedJSON,
		string(conflict.Status),
		string(conflict.Resolution),
		conflict.CreatedAt,
		conflict.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("saving conflict: %w", err)
	}
	return nil
}

// FindConflicts returns a session's archived conflicts.
func (r *Repository) FindConflicts(ctx context.Context, sessionID string) ([]entities.WorldConflict, error) {
	query := `
		SELECT id, session_id, type, severity, first_ref_id, second_ref_id, description, affected, status, resolution, created_at, resolved_at
		FROM conflicts
		WHERE session_id = ?
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("finding conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []entities.WorldConflict
	for rows.Next() {
		var conflict entities.WorldConflict
		var affectedJSON, resolution sql.NullString
		if err := rows.Scan(
			&conflict.ID,
			&conflict.SessionID,
			&conflict.Type,
			&conflict.Severity,
			&conflict.FirstRefID,
			&conflict.SecondRefID,
			&conflict.Description,
			&affectedJSON,
			&conflict.Status,
			&resolution,
			&conflict.CreatedAt,
			&conflict.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		if affectedJSON.Valid {
			if err := json.Unmarshal([]byte(affectedJSON.String), &conflict.AffectedParticipants); err != nil {
				return nil, fmt.Errorf("unmarshaling affected participants: %w", err)
			}
		}
		if resolution.Valid {
			conflict.Resolution = entities.ResolutionMethod(resolution.String)
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts, rows.Err()
}

// SaveSnapshot stores a world snapshot export.
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *entities.WorldSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	query := `INSERT INTO snapshots (session_id, taken_at, data) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, snapshot.SessionID, snapshot.TakenAt, string(data)); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// FindLatestSnapshot returns the most recent snapshot for a session, or nil
// when none was archived.
func (r *Repository) FindLatestSnapshot(ctx context.Context, sessionID string) (*entities.WorldSnapshot, error) {
	query := `
		SELECT data
		FROM snapshots
		WHERE session_id = ?
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, sessionID)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding snapshot: %w", err)
	}

	var snapshot entities.WorldSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snapshot, nil
}

// LogAction logs an action to the session audit log.
func (r *Repository) LogAction(ctx context.Context, sessionID, action, refID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO audit_log (session_id, action, ref_id, details) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, sessionID, action, refID, detailsJSON); err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit entries for a session, newest first.
func (r *Repository) FindAuditLog(ctx context.Context, sessionID string, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, session_id, action, ref_id, details, created_at
		FROM audit_log
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("finding audit log: %w", err)
	}
	defer rows.Close()

	var logEntries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var refID, detailsJSON sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Action,
			&refID,
			&detailsJSON,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entry.RefID = refID.String
		if detailsJSON.Valid {
			if err := json.Unmarshal([]byte(detailsJSON.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}
		logEntries = append(logEntries, entry)
	}
	return logEntries, rows.Err()
}
