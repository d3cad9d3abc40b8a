// Package services implements the multiplayer world-consistency and
// turn-synchronization core: the world graph store, conflict detection and
// resolution, the turn coordinator, per-participant synchronization and the
// session facade that wires them together.
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
)

// DefaultMaxParticipants bounds a session when no limit is configured.
const DefaultMaxParticipants = 8

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// SessionSettings carries the per-session policy knobs.
type SessionSettings struct {
	TurnTimeLimit   time.Duration `json:"turn_time_limit"`
	MaxParticipants int           `json:"max_participants"`
}

// Session is the per-session aggregate: it owns its world graph, turn
// coordinator, sync manager and detector, and the single mutex that
// serializes every mutating operation against them. Sessions share no
// mutable state with each other.
type Session struct {
	mu sync.Mutex

	ID        string
	Name      string
	Status    SessionStatus
	Settings  SessionSettings
	CreatedAt time.Time
	EndedAt   *time.Time

	participants map[string]*entities.SessionParticipant
	graph        *WorldGraph
	detector     *ConflictDetector
	turns        *TurnCoordinator
	syncs        *SyncManager
}

// SessionInfo is the read-only view of a session returned across the facade
// boundary.
type SessionInfo struct {
	ID              string                        `json:"id"`
	Name            string                        `json:"name"`
	Status          SessionStatus                 `json:"status"`
	Participants    []entities.SessionParticipant `json:"participants"`
	TurnOrder       entities.TurnOrder            `json:"turn_order"`
	CurrentTurn     *entities.TurnState           `json:"current_turn,omitempty"`
	TurnCount       int                           `json:"turn_count"`
	SyncProgress    float64                       `json:"sync_progress"`
	IsSynchronized  bool                          `json:"is_synchronized"`
	CreatedAt       time.Time                     `json:"created_at"`
	EndedAt         *time.Time                    `json:"ended_at,omitempty"`
	TurnTimeLimit   time.Duration                 `json:"turn_time_limit"`
	MaxParticipants int                           `json:"max_participants"`
}

// SessionService is the facade over the session registry. Every public
// operation resolves the session, enters its critical section and delegates
// to the owned components. A missing component on a registered session is a
// wiring bug and panics rather than silently no-ops.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	now        ports.Clock
	scheduler  ports.Scheduler
	classifier ports.TurnClassifier
	index      ports.SimilarityIndex
	archive    ports.ArchiveDB
	defaults   SessionSettings
}

// SessionServiceOption customizes facade construction.
type SessionServiceOption func(*SessionService)

// WithClock injects a time source, used by tests.
func WithClock(now ports.Clock) SessionServiceOption {
	return func(s *SessionService) { s.now = now }
}

// WithScheduler injects a deadline scheduler.
func WithScheduler(scheduler ports.Scheduler) SessionServiceOption {
	return func(s *SessionService) { s.scheduler = scheduler }
}

// WithClassifier injects a turn classifier.
func WithClassifier(classifier ports.TurnClassifier) SessionServiceOption {
	return func(s *SessionService) { s.classifier = classifier }
}

// WithSimilarityIndex injects a similarity index for duplicate detection.
func WithSimilarityIndex(index ports.SimilarityIndex) SessionServiceOption {
	return func(s *SessionService) { s.index = index }
}

// WithArchive injects a persistence collaborator for session records, turns,
// conflicts and the audit log.
func WithArchive(archive ports.ArchiveDB) SessionServiceOption {
	return func(s *SessionService) { s.archive = archive }
}

// WithSessionDefaults overrides the fallback policy applied when CreateSession
// input leaves a setting unset. Zero fields keep the package defaults.
func WithSessionDefaults(settings SessionSettings) SessionServiceOption {
	return func(s *SessionService) {
		if settings.TurnTimeLimit > 0 {
			s.defaults.TurnTimeLimit = settings.TurnTimeLimit
		}
		if settings.MaxParticipants > 0 {
			s.defaults.MaxParticipants = settings.MaxParticipants
		}
	}
}

// NewSessionService creates the facade with sane defaults: wall clock,
// time.AfterFunc deadlines and the keyword classifier.
func NewSessionService(opts ...SessionServiceOption) *SessionService {
	svc := &SessionService{
		sessions:   make(map[string]*Session),
		now:        time.Now,
		scheduler:  NewTimerScheduler(),
		classifier: NewKeywordClassifier(),
		defaults: SessionSettings{
			TurnTimeLimit:   DefaultTurnTimeLimit,
			MaxParticipants: DefaultMaxParticipants,
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateSessionInput describes a new session and its host.
type CreateSessionInput struct {
	Name     string
	HostID   string
	HostName string
	Settings SessionSettings
}

// JoinSessionInput describes a joining participant.
type JoinSessionInput struct {
	UserID string
	Name   string
	Role   entities.ParticipantRole
}

// CreateSession creates a session with the host joined as DM, initializes the
// turn order and synchronization state, and registers the session.
func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (*SessionInfo, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: session name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.HostID) == "" {
		return nil, fmt.Errorf("%w: host id is required", ErrInvalidInput)
	}

	settings := input.Settings
	if settings.TurnTimeLimit <= 0 {
		settings.TurnTimeLimit = s.defaults.TurnTimeLimit
	}
	if settings.MaxParticipants <= 0 {
		settings.MaxParticipants = s.defaults.MaxParticipants
	}

	now := s.now()
	session := &Session{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(input.Name),
		Status:       SessionActive,
		Settings:     settings,
		CreatedAt:    now,
		participants: make(map[string]*entities.SessionParticipant),
	}
	session.graph = NewWorldGraph(session.ID, s.now)
	session.detector = NewConflictDetector(session.graph, s.index, s.now)
	session.turns = NewTurnCoordinator(session.ID, settings.TurnTimeLimit, s.now, s.scheduler, s.classifier)
	session.syncs = NewSyncManager(session.ID, session.graph, session.detector, s.now)

	sessionID := session.ID
	session.turns.SetTimeoutHandler(func(turnID string) {
		s.handleTurnTimeout(sessionID, turnID)
	})

	host := newParticipant(session.ID, input.HostID, input.HostName, entities.RoleDM, now)
	session.participants[host.ID] = host
	session.turns.InitializeOrder(session.participantList())
	session.syncs.Initialize([]string{host.ID})

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.archiveSession(ctx, session)
	s.audit(ctx, session.ID, "session_created", session.ID, map[string]any{"name": session.Name})
	return session.info(), nil
}

func newParticipant(sessionID, userID, name string, role entities.ParticipantRole, now time.Time) *entities.SessionParticipant {
	if name == "" {
		name = userID
	}
	return &entities.SessionParticipant{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		UserID:      userID,
		Name:        name,
		Role:        role,
		Status:      entities.ParticipantActive,
		Permissions: entities.DefaultPermissions(role),
		Connected:   true,
		JoinedAt:    now,
	}
}

// JoinSession adds a participant to an active session. Joining twice with the
// same user id, or past the participant limit, is rejected.
func (s *SessionService) JoinSession(ctx context.Context, sessionID string, input JoinSessionInput) (*entities.SessionParticipant, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	switch input.Role {
	case entities.RoleDM, entities.RolePlayer, entities.RoleSpectator:
	case "":
		input.Role = entities.RolePlayer
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, input.Role)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.Status != SessionActive {
		return nil, ErrSessionEnded
	}
	active := 0
	for _, p := range session.participants {
		if p.Status != entities.ParticipantLeft {
			if p.UserID == input.UserID {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateJoin, input.UserID)
			}
			active++
		}
	}
	if active >= session.Settings.MaxParticipants {
		return nil, ErrSessionFull
	}

	participant := newParticipant(session.ID, input.UserID, input.Name, input.Role, s.now())
	session.participants[participant.ID] = participant
	session.turns.InitializeOrder(session.participantList())
	session.syncs.AddParticipant(participant.ID)

	s.archiveSession(ctx, session)
	s.audit(ctx, session.ID, "participant_joined", participant.ID, map[string]any{"user_id": input.UserID, "role": string(input.Role)})
	return participant, nil
}

// LeaveSession removes a participant from the rotation and sync accounting.
// The participant record is kept with status left.
func (s *SessionService) LeaveSession(ctx context.Context, sessionID, participantID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	participant, ok := session.participants[participantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	participant.Status = entities.ParticipantLeft
	participant.Connected = false
	session.turns.InitializeOrder(session.participantList())
	session.syncs.RemoveParticipant(participantID)

	s.audit(ctx, session.ID, "participant_left", participantID, nil)
	return nil
}

// DisconnectParticipant handles a dropped connection: the participant leaves
// the rotation and their sync cursor resets so reconnection forces a full
// resync.
func (s *SessionService) DisconnectParticipant(ctx context.Context, sessionID, participantID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	participant, ok := session.participants[participantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	participant.Status = entities.ParticipantDisconnected
	participant.Connected = false
	session.turns.InitializeOrder(session.participantList())
	if err := session.syncs.HandleDisconnect(participantID); err != nil {
		return err
	}

	s.audit(ctx, session.ID, "participant_disconnected", participantID, nil)
	return nil
}

// ReconnectParticipant restores a disconnected participant to the rotation.
// They remain non-current until they pull a sync.
func (s *SessionService) ReconnectParticipant(ctx context.Context, sessionID, participantID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	participant, ok := session.participants[participantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	participant.Status = entities.ParticipantActive
	participant.Connected = true
	session.turns.InitializeOrder(session.participantList())
	if err := session.syncs.HandleConnect(participantID); err != nil {
		return err
	}

	s.audit(ctx, session.ID, "participant_reconnected", participantID, nil)
	return nil
}

// EndSession closes a session. Ended sessions reject joins and turns but stay
// readable.
func (s *SessionService) EndSession(ctx context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.Status == SessionEnded {
		return ErrSessionEnded
	}
	now := s.now()
	session.Status = SessionEnded
	session.EndedAt = &now

	if s.index != nil {
		// Index entries are per session; drop them with it. Best effort,
		// like the archive writes.
		_ = s.index.RemoveSession(ctx, session.ID)
	}

	s.archiveSession(ctx, session)
	s.audit(ctx, session.ID, "session_ended", session.ID, nil)
	return nil
}

// GetSession returns the read-only view of a session.
func (s *SessionService) GetSession(sessionID string) (*SessionInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.info(), nil
}

// CreateEntity adds an entity to the session's world. Duplicate detection
// runs as a side effect and never blocks the create.
func (s *SessionService) CreateEntity(ctx context.Context, sessionID string, input CreateEntityInput) (*entities.WorldEntity, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	entity, err := session.graph.CreateEntity(input)
	if err != nil {
		return nil, err
	}
	if s.index != nil {
		// Indexing is best effort; a failed index only narrows future
		// duplicate candidate retrieval.
		_ = s.index.IndexEntity(ctx, entity)
	}
	if conflict := session.detector.DetectDuplicate(ctx, entity); conflict != nil {
		s.archiveConflict(ctx, conflict)
	}

	s.audit(ctx, session.ID, "entity_created", entity.ID, map[string]any{"name": entity.Name, "type": string(entity.Type)})
	return entity, nil
}

// CreateRelationship links two entities and checks the new edge for
// contradictions with existing ones.
func (s *SessionService) CreateRelationship(ctx context.Context, sessionID string, input CreateRelationshipInput) (*entities.WorldRelationship, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	rel, err := session.graph.CreateRelationship(input)
	if err != nil {
		return nil, err
	}
	if conflict := session.detector.DetectRelationshipContradiction(rel); conflict != nil {
		s.archiveConflict(ctx, conflict)
	}

	s.audit(ctx, session.ID, "relationship_created", rel.ID, map[string]any{"type": string(rel.Type)})
	return rel, nil
}

// UpdateFact records a property assertion and checks it against other facts
// on the same key.
func (s *SessionService) UpdateFact(ctx context.Context, sessionID string, input UpdateFactInput) (*entities.WorldFact, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	fact, err := session.graph.UpdateFact(input)
	if err != nil {
		return nil, err
	}
	for _, conflict := range session.detector.DetectFactContradiction(fact) {
		s.archiveConflict(ctx, conflict)
	}

	s.audit(ctx, session.ID, "fact_updated", fact.ID, map[string]any{"key": fact.Key})
	return fact, nil
}

// MoveEntity relocates an entity.
func (s *SessionService) MoveEntity(ctx context.Context, sessionID, entityID, location string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.graph.MoveEntity(entityID, location); err != nil {
		return err
	}
	s.audit(ctx, session.ID, "entity_moved", entityID, map[string]any{"location": location})
	return nil
}

// QueryEntities filters the session's entities.
func (s *SessionService) QueryEntities(sessionID string, q EntityQuery) ([]entities.WorldEntity, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.graph.QueryEntities(q), nil
}

// QueryRelationships filters the session's relationships.
func (s *SessionService) QueryRelationships(sessionID string, q RelationshipQuery) ([]entities.WorldRelationship, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.graph.QueryRelationships(q), nil
}

// QueryFacts filters the session's facts.
func (s *SessionService) QueryFacts(sessionID string, q FactQuery) ([]entities.WorldFact, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.graph.QueryFacts(q), nil
}

// AddRule registers a declarative validation rule for the session's world.
func (s *SessionService) AddRule(sessionID string, rule entities.WorldRule) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	session.graph.AddRule(rule)
	return nil
}

// ValidateWorld runs a full consistency scan over the session's world.
func (s *SessionService) ValidateWorld(sessionID string) (entities.ValidationReport, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return entities.ValidationReport{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.graph.Validate(), nil
}

// SnapshotWorld exports the session's world and archives the export when a
// persistence collaborator is wired.
func (s *SessionService) SnapshotWorld(ctx context.Context, sessionID string) (*entities.WorldSnapshot, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	snapshot := session.graph.Snapshot()
	if s.archive != nil {
		if err := s.archive.SaveSnapshot(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("archiving snapshot: %w", err)
		}
	}
	return snapshot, nil
}

// StartNextTurn advances the rotation and opens the next turn slot.
func (s *SessionService) StartNextTurn(ctx context.Context, sessionID string) (*entities.TurnState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.Status != SessionActive {
		return nil, ErrSessionEnded
	}
	turn, err := session.turns.StartNextTurn()
	if err != nil {
		return nil, err
	}
	s.audit(ctx, session.ID, "turn_started", turn.ID, map[string]any{"turn_number": turn.TurnNumber, "participant_id": turn.ParticipantID})
	return turn, nil
}

// SubmitTurnAction records the owner's action, checks it against other recent
// turns, and pushes its world changes through the synchronization pipeline.
// applied reports whether the changes committed or were held on a conflict.
func (s *SessionService) SubmitTurnAction(ctx context.Context, sessionID, participantID string, action entities.TurnAction) (turn *entities.TurnState, applied bool, err error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, false, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	turn, err = session.turns.SubmitAction(ctx, participantID, action)
	if err != nil {
		return nil, false, err
	}
	if conflict := session.turns.DetectTurnConflict(session.graph, turn); conflict != nil {
		s.archiveConflict(ctx, conflict)
	}

	applied = true
	if len(action.Changes) > 0 {
		payloads := make([]entities.ChangePayload, 0, len(action.Changes))
		for _, change := range action.Changes {
			if change.Payload != nil {
				payloads = append(payloads, change.Payload)
			}
		}
		applied, err = session.syncs.ProcessWorldChanges(ctx, participantID, payloads, session.turns.TurnCount())
		if err != nil {
			return turn, false, err
		}
	}

	s.audit(ctx, session.ID, "action_submitted", turn.ID, map[string]any{"type": string(turn.Type), "applied": applied})
	return turn, applied, nil
}

// CompleteTurn finishes the caller's turn and finalizes any of their world
// changes still held in the pending queue.
func (s *SessionService) CompleteTurn(ctx context.Context, sessionID, participantID string) (*entities.TurnState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	turn, err := session.turns.CompleteTurn(participantID)
	if err != nil {
		return nil, err
	}
	if _, err := session.syncs.FinalizePending(ctx, participantID, session.turns.TurnCount()); err != nil {
		return nil, err
	}

	s.archiveTurn(ctx, turn)
	s.audit(ctx, session.ID, "turn_completed", turn.ID, map[string]any{"turn_number": turn.TurnNumber})
	return turn, nil
}

// SkipTurn forfeits the caller's turn.
func (s *SessionService) SkipTurn(ctx context.Context, sessionID, participantID string) (*entities.TurnState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	turn, err := session.turns.SkipTurn(participantID)
	if err != nil {
		return nil, err
	}

	s.archiveTurn(ctx, turn)
	s.audit(ctx, session.ID, "turn_skipped", turn.ID, map[string]any{"turn_number": turn.TurnNumber})
	return turn, nil
}

// handleTurnTimeout is the deadline callback. It re-enters the session
// critical section and expires the turn only if it is still the in-flight,
// non-terminal one, making a late timer harmless.
func (s *SessionService) handleTurnTimeout(sessionID, turnID string) {
	session, err := s.session(sessionID)
	if err != nil {
		return
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if !session.turns.ExpireTurn(turnID) {
		return
	}
	ctx := context.Background()
	turn := session.turns.CurrentTurn()
	s.archiveTurn(ctx, turn)
	s.audit(ctx, session.ID, "turn_timeout", turnID, map[string]any{"turn_number": turn.TurnNumber})
}

// ProcessWorldChanges runs a batch of out-of-turn world edits through the
// synchronization pipeline. Returns whether the batch was applied or held.
func (s *SessionService) ProcessWorldChanges(ctx context.Context, sessionID, participantID string, changes []entities.ChangePayload) (bool, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return false, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if _, ok := session.participants[participantID]; !ok {
		return false, fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	applied, err := session.syncs.ProcessWorldChanges(ctx, participantID, changes, session.turns.TurnCount())
	if err != nil {
		return false, err
	}
	s.audit(ctx, session.ID, "changes_processed", participantID, map[string]any{"count": len(changes), "applied": applied})
	return applied, nil
}

// RequestSynchronization pulls the delta a participant is missing and marks
// them current.
func (s *SessionService) RequestSynchronization(ctx context.Context, sessionID, participantID string, fromTurn int, includeFull bool) (*entities.SyncDelta, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	delta, err := session.syncs.RequestSynchronization(participantID, fromTurn, includeFull, session.turns)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, session.ID, "synchronized", participantID, map[string]any{"full": delta.Full, "synced_turn": delta.SyncedTurn})
	return delta, nil
}

// ForceResynchronization is the recovery hatch for degraded sessions.
func (s *SessionService) ForceResynchronization(ctx context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	session.syncs.ForceResynchronization()
	s.audit(ctx, session.ID, "force_resync", sessionID, nil)
	return nil
}

// SyncHealth reports synchronization diagnostics for a session.
func (s *SessionService) SyncHealth(sessionID string) (entities.SyncHealth, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return entities.SyncHealth{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.syncs.HealthStatus(), nil
}

// ParticipantSync returns a participant's sync cursor.
func (s *SessionService) ParticipantSync(sessionID, participantID string) (*entities.ParticipantSync, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	sync := session.syncs.Participant(participantID)
	if sync == nil {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	copied := *sync
	copied.PendingChanges = append([]entities.WorldChange(nil), sync.PendingChanges...)
	copied.ConflictIDs = append([]string(nil), sync.ConflictIDs...)
	return &copied, nil
}

// OpenConflicts returns the session's unresolved conflicts.
func (s *SessionService) OpenConflicts(sessionID string) ([]entities.WorldConflict, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	open := session.graph.OpenConflicts()
	out := make([]entities.WorldConflict, len(open))
	for i, c := range open {
		out[i] = *c
	}
	return out, nil
}

// ResolveConflicts applies a resolution strategy to the session's open
// conflicts and returns how many were resolved.
func (s *SessionService) ResolveConflicts(ctx context.Context, sessionID string, method entities.ResolutionMethod) (int, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return 0, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	var resolved int
	switch method {
	case entities.ResolutionWeighted:
		resolved = session.detector.ResolveWeighted()
	case entities.ResolutionMostRecent:
		resolved = session.detector.ResolveMostRecent()
	default:
		return 0, fmt.Errorf("%w: unknown resolution method %q", ErrInvalidInput, method)
	}

	s.audit(ctx, session.ID, "conflicts_resolved", sessionID, map[string]any{"method": string(method), "count": resolved})
	return resolved, nil
}

// ResolveConflict closes a single conflict with an operator-chosen terminal
// status.
func (s *SessionService) ResolveConflict(ctx context.Context, sessionID, conflictID string, status entities.ConflictStatus) (*entities.WorldConflict, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	conflict, err := session.detector.ResolveManual(conflictID, status)
	if err != nil {
		return nil, err
	}
	s.archiveConflict(ctx, conflict)
	s.audit(ctx, session.ID, "conflict_resolved", conflictID, map[string]any{"status": string(status)})
	return conflict, nil
}

// ListSessions returns views of every registered session, oldest first.
func (s *SessionService) ListSessions() []SessionInfo {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	out := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		session.mu.Lock()
		out = append(out, *session.info())
		session.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// session resolves a registered session by id.
func (s *SessionService) session(sessionID string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if session.graph == nil || session.turns == nil || session.syncs == nil || session.detector == nil {
		// A registered session missing a component is a wiring bug, not
		// a user error.
		panic(fmt.Sprintf("session %s is not fully wired", sessionID))
	}
	return session, nil
}

// participantList snapshots the participant set. Caller holds the session
// lock.
func (sess *Session) participantList() []entities.SessionParticipant {
	out := make([]entities.SessionParticipant, 0, len(sess.participants))
	for _, p := range sess.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

// info builds the read-only view. Caller holds the session lock.
func (sess *Session) info() *SessionInfo {
	return &SessionInfo{
		ID:              sess.ID,
		Name:            sess.Name,
		Status:          sess.Status,
		Participants:    sess.participantList(),
		TurnOrder:       sess.turns.Order(),
		CurrentTurn:     sess.turns.CurrentTurn(),
		TurnCount:       sess.turns.TurnCount(),
		SyncProgress:    sess.syncs.Progress(),
		IsSynchronized:  sess.syncs.IsSynchronized(),
		CreatedAt:       sess.CreatedAt,
		EndedAt:         sess.EndedAt,
		TurnTimeLimit:   sess.Settings.TurnTimeLimit,
		MaxParticipants: sess.Settings.MaxParticipants,
	}
}

// archiveSession, archiveTurn, archiveConflict and audit are best-effort
// write-behind calls; the in-memory state is authoritative and a failed
// archive write never fails the operation that triggered it.

func (s *SessionService) archiveSession(ctx context.Context, session *Session) {
	if s.archive == nil {
		return
	}
	active := 0
	for _, p := range session.participants {
		if p.Status != entities.ParticipantLeft {
			active++
		}
	}
	_ = s.archive.SaveSession(ctx, &ports.SessionRecord{
		ID:           session.ID,
		Name:         session.Name,
		Status:       string(session.Status),
		Participants: active,
		TurnCount:    session.turns.TurnCount(),
		CreatedAt:    session.CreatedAt,
		EndedAt:      session.EndedAt,
	})
}

func (s *SessionService) archiveTurn(ctx context.Context, turn *entities.TurnState) {
	if s.archive == nil || turn == nil {
		return
	}
	_ = s.archive.SaveTurn(ctx, turn)
}

func (s *SessionService) archiveConflict(ctx context.Context, conflict *entities.WorldConflict) {
	if s.archive == nil || conflict == nil {
		return
	}
	_ = s.archive.SaveConflict(ctx, conflict)
}

func (s *SessionService) audit(ctx context.Context, sessionID, action, refID string, details map[string]any) {
	if s.archive == nil {
		return
	}
	_ = s.archive.LogAction(ctx, sessionID, action, refID, details)
}
