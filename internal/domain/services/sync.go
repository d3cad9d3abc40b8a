package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
)

const (
	// synchronizedThreshold: the session counts as synchronized once this
	// fraction of participants is current. Policy constant, not
	// configurable.
	synchronizedThreshold = 0.9

	// Health diagnostics flag a session as degraded below this progress,
	// above this many pending changes, or with any open conflict.
	degradedProgress       = 0.8
	degradedPendingChanges = 10
)

// SyncManager keeps per-participant synchronization cursors and pending
// change queues for one session, detects conflicting concurrent edits before
// they commit, and accounts synchronization progress. Calls are serialized by
// the owning session's critical section.
type SyncManager struct {
	sessionID string
	now       ports.Clock
	graph     *WorldGraph
	detector  *ConflictDetector

	participants map[string]*entities.ParticipantSync
	pending      []entities.WorldChange
	progress     float64
}

// NewSyncManager creates a sync manager bound to a session's graph and
// detector.
func NewSyncManager(sessionID string, graph *WorldGraph, detector *ConflictDetector, now ports.Clock) *SyncManager {
	if now == nil {
		now = time.Now
	}
	return &SyncManager{
		sessionID:    sessionID,
		now:          now,
		graph:        graph,
		detector:     detector,
		participants: make(map[string]*entities.ParticipantSync),
	}
}

// Initialize creates sync records for the initial participants, all current.
// Progress starts at 1.0.
func (m *SyncManager) Initialize(participantIDs []string) {
	for _, id := range participantIDs {
		m.participants[id] = &entities.ParticipantSync{
			ParticipantID: id,
			IsCurrent:     true,
		}
	}
	m.recomputeProgress()
}

// AddParticipant registers a late joiner. They start non-current and must
// pull a full sync.
func (m *SyncManager) AddParticipant(participantID string) {
	m.participants[participantID] = &entities.ParticipantSync{
		ParticipantID: participantID,
		IsCurrent:     false,
	}
	m.recomputeProgress()
}

// RemoveParticipant drops a sync record when a participant leaves for good.
func (m *SyncManager) RemoveParticipant(participantID string) {
	delete(m.participants, participantID)
	m.recomputeProgress()
}

// Participant returns a participant's sync record, or nil.
func (m *SyncManager) Participant(participantID string) *entities.ParticipantSync {
	return m.participants[participantID]
}

// Progress returns the fraction of participants whose view is current.
func (m *SyncManager) Progress() float64 { return m.progress }

// IsSynchronized reports whether progress has reached the threshold.
func (m *SyncManager) IsSynchronized() bool { return m.progress >= synchronizedThreshold }

// PendingChangeCount returns how many changes are queued session-wide.
func (m *SyncManager) PendingChangeCount() int { return len(m.pending) }

// ProcessWorldChanges runs the enqueue, detect, commit-or-hold sequence for a
// batch of changes from one participant. When any change collides with
// another participant's change still in the pending window (applied or not),
// the whole batch is held, a conflict is registered for each collision,
// affected participants go non-current and the call returns false. Otherwise
// the batch applies to the world graph and its cursor advances, with every
// other participant marked non-current so they re-pull. Applied changes stay
// in the window until the submitter finalizes or pulls a sync, keeping them
// visible to collision detection. Returns whether the batch was applied.
func (m *SyncManager) ProcessWorldChanges(ctx context.Context, participantID string, changes []entities.ChangePayload, turnCount int) (bool, error) {
	sync, ok := m.participants[participantID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	if len(changes) == 0 {
		return true, nil
	}

	now := m.now()
	batch := make([]entities.WorldChange, len(changes))
	for i, payload := range changes {
		batch[i] = entities.WorldChange{
			ID:            uuid.New().String(),
			SessionID:     m.sessionID,
			ParticipantID: participantID,
			Payload:       payload,
			CreatedAt:     now,
		}
	}

	collisions := m.detectCollisions(batch, participantID)
	if len(collisions) > 0 {
		// Hold the whole batch; it stays unapplied in the window until
		// the colliding changes drain.
		m.enqueue(sync, batch)
		sync.IsCurrent = false
		for _, c := range collisions {
			conflict := m.graph.RegisterConflict(c)
			for _, pid := range conflict.AffectedParticipants {
				if ps, ok := m.participants[pid]; ok {
					ps.IsCurrent = false
					ps.ConflictIDs = appendUnique(ps.ConflictIDs, conflict.ID)
				}
			}
		}
		m.recomputeProgress()
		return false, nil
	}

	for i := range batch {
		if err := m.applyChange(ctx, &batch[i]); err != nil {
			// The applied prefix stays in the window alongside the
			// unapplied remainder until the next finalize.
			m.enqueue(sync, batch)
			sync.IsCurrent = false
			m.recomputeProgress()
			return false, fmt.Errorf("applying change %s: %w", batch[i].ID, err)
		}
		batch[i].Applied = true
	}

	m.enqueue(sync, batch)
	sync.LastSyncedTurn = turnCount
	sync.IsCurrent = true
	for id, other := range m.participants {
		if id != participantID {
			other.IsCurrent = false
		}
	}
	m.recomputeProgress()
	return true, nil
}

// enqueue appends a batch to the session window and the submitter's queue.
func (m *SyncManager) enqueue(sync *entities.ParticipantSync, batch []entities.WorldChange) {
	m.pending = append(m.pending, batch...)
	sync.PendingChanges = append(sync.PendingChanges, batch...)
}

// detectCollisions pairs each change in the batch against other participants'
// still-pending changes of the same kind touching the same target.
func (m *SyncManager) detectCollisions(batch []entities.WorldChange, participantID string) []*entities.WorldConflict {
	var out []*entities.WorldConflict
	for i := range batch {
		change := &batch[i]
		for j := range m.pending {
			other := &m.pending[j]
			if other.ID == change.ID || other.ParticipantID == participantID {
				continue
			}
			if !change.Collides(other) {
				continue
			}
			out = append(out, &entities.WorldConflict{
				Type:                 conflictTypeFor(change.Payload.Kind()),
				Severity:             entities.SeverityMedium,
				FirstRefID:           other.ID,
				SecondRefID:          change.ID,
				AffectedParticipants: []string{other.ParticipantID, change.ParticipantID},
				Description: fmt.Sprintf("concurrent %s changes to %s by %s and %s",
					change.Payload.Kind(), change.Payload.TargetID(), other.ParticipantID, change.ParticipantID),
			})
		}
	}
	return out
}

func conflictTypeFor(kind entities.ChangeKind) entities.ConflictType {
	switch kind {
	case entities.ChangeRelationship:
		return entities.ConflictRelationship
	case entities.ChangeFactAssertion:
		return entities.ConflictProperty
	default:
		return entities.ConflictEntity
	}
}

// applyChange commits one change to the world graph, running the relevant
// contradiction detection as it lands.
func (m *SyncManager) applyChange(ctx context.Context, change *entities.WorldChange) error {
	switch payload := change.Payload.(type) {
	case entities.EntityUpdate:
		entity := m.graph.Entity(payload.EntityID)
		if entity == nil {
			return fmt.Errorf("%w: %s", ErrEntityNotFound, payload.EntityID)
		}
		if payload.Name != "" {
			entity.Name = payload.Name
			entity.NormalizedName = entities.NormalizeName(payload.Name)
		}
		if payload.Status != "" {
			entity.Status = payload.Status
		}
		if payload.Confidence != nil {
			entity.Confidence = entities.ClampConfidence(*payload.Confidence)
		}
		for _, tag := range payload.AddTags {
			if !entity.HasTag(tag) {
				entity.Tags = append(entity.Tags, tag)
			}
		}
		entity.UpdatedAt = m.now()
		return nil

	case entities.RelationshipChange:
		if payload.Invalidate {
			existing := m.graph.QueryRelationships(RelationshipQuery{
				SubjectID: payload.SubjectID,
				ObjectID:  payload.ObjectID,
				Type:      payload.Type,
			})
			for i := range existing {
				if existing[i].ValidUntil == nil {
					if err := m.graph.InvalidateRelationship(existing[i].ID); err != nil {
						return err
					}
				}
			}
			return nil
		}
		confidence := payload.Confidence
		input := CreateRelationshipInput{
			SubjectID: payload.SubjectID,
			ObjectID:  payload.ObjectID,
			Type:      payload.Type,
			Strength:  payload.Strength,
			Mutual:    payload.Mutual,
		}
		if confidence > 0 {
			input.Confidence = &confidence
		}
		rel, err := m.graph.CreateRelationship(input)
		if err != nil {
			return err
		}
		m.detector.DetectRelationshipContradiction(rel)
		return nil

	case entities.FactAssertion:
		confidence := payload.Confidence
		input := UpdateFactInput{
			SubjectID:  payload.EntityID,
			Key:        payload.Key,
			Value:      payload.Value,
			RecordedBy: change.ParticipantID,
		}
		if confidence > 0 {
			input.Confidence = &confidence
		}
		fact, err := m.graph.UpdateFact(input)
		if err != nil {
			return err
		}
		m.detector.DetectFactContradiction(fact)
		return nil

	case entities.EntityMove:
		return m.graph.MoveEntity(payload.EntityID, payload.Location)

	default:
		return fmt.Errorf("%w: unknown change payload", ErrInvalidInput)
	}
}

// removePending drops the given batch from the session-wide queue.
func (m *SyncManager) removePending(batch []entities.WorldChange) {
	applied := make(map[string]bool, len(batch))
	for i := range batch {
		applied[batch[i].ID] = true
	}
	kept := m.pending[:0]
	for i := range m.pending {
		if !applied[m.pending[i].ID] {
			kept = append(kept, m.pending[i])
		}
	}
	m.pending = kept
}

// FinalizePending closes a participant's pending window, typically when their
// turn completes: already-applied changes are released and held ones are
// retried. Held changes apply only if the original collisions have drained
// from the window. Returns whether the queue is now empty.
func (m *SyncManager) FinalizePending(ctx context.Context, participantID string, turnCount int) (bool, error) {
	sync, ok := m.participants[participantID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	if len(sync.PendingChanges) == 0 {
		return true, nil
	}

	var held []entities.WorldChange
	for i := range sync.PendingChanges {
		if !sync.PendingChanges[i].Applied {
			held = append(held, sync.PendingChanges[i])
		}
	}
	if len(held) > 0 {
		if len(m.detectCollisions(held, participantID)) > 0 {
			return false, nil
		}
		for i := range held {
			if err := m.applyChange(ctx, &held[i]); err != nil {
				return false, fmt.Errorf("applying change %s: %w", held[i].ID, err)
			}
		}
	}

	m.removePending(sync.PendingChanges)
	sync.PendingChanges = nil
	sync.LastSyncedTurn = turnCount
	sync.IsCurrent = true
	for id, other := range m.participants {
		if id != participantID {
			other.IsCurrent = false
		}
	}
	m.recomputeProgress()
	return true, nil
}

// RequestSynchronization pulls the delta a participant is missing. A
// non-current participant, or an explicit full request, receives the complete
// world snapshot plus missed turns plus conflicts addressed to them; a
// current one receives only turns after fromTurn. The participant's cursor
// always advances to the latest turn and its pending list clears.
func (m *SyncManager) RequestSynchronization(participantID string, fromTurn int, includeFull bool, turns *TurnCoordinator) (*entities.SyncDelta, error) {
	sync, ok := m.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}

	delta := &entities.SyncDelta{SyncedTurn: turns.TurnCount()}
	if !sync.IsCurrent || includeFull {
		delta.Full = true
		delta.Snapshot = m.graph.Snapshot()
		delta.MissedTurns = turns.MissedTurns(sync.LastSyncedTurn)
		delta.Conflicts = m.conflictsFor(participantID)
	} else {
		delta.MissedTurns = turns.MissedTurns(fromTurn)
	}

	now := m.now()
	sync.LastSyncedTurn = turns.TurnCount()
	m.removePending(sync.PendingChanges)
	sync.PendingChanges = nil
	sync.IsCurrent = true
	sync.LastSyncAt = &now
	m.recomputeProgress()
	return delta, nil
}

// conflictsFor collects open conflicts addressed to a participant: linked ids
// plus any open conflict naming them as affected.
func (m *SyncManager) conflictsFor(participantID string) []entities.WorldConflict {
	sync := m.participants[participantID]
	seen := make(map[string]bool)
	var out []entities.WorldConflict
	if sync != nil {
		for _, id := range sync.ConflictIDs {
			if c := m.graph.Conflict(id); c != nil && !seen[id] {
				seen[id] = true
				out = append(out, *c)
			}
		}
	}
	for _, c := range m.graph.OpenConflicts() {
		if seen[c.ID] {
			continue
		}
		for _, pid := range c.AffectedParticipants {
			if pid == participantID {
				seen[c.ID] = true
				out = append(out, *c)
				break
			}
		}
	}
	return out
}

// HandleDisconnect marks a participant non-current and resets their cursor so
// reconnection forces a full resync.
func (m *SyncManager) HandleDisconnect(participantID string) error {
	sync, ok := m.participants[participantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	sync.IsCurrent = false
	sync.LastSyncedTurn = 0
	m.recomputeProgress()
	return nil
}

// HandleConnect marks a reconnected participant non-current; a sync pull is
// still required before they are considered caught up.
func (m *SyncManager) HandleConnect(participantID string) error {
	sync, ok := m.participants[participantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	sync.IsCurrent = false
	m.recomputeProgress()
	return nil
}

// ForceResynchronization is the recovery hatch for degraded sessions: every
// participant goes non-current, all pending changes clear and open conflicts
// expire. Progress is deliberately not recomputed here; the next mutating
// call recomputes it from the all-stale state.
func (m *SyncManager) ForceResynchronization() {
	for _, sync := range m.participants {
		sync.IsCurrent = false
		sync.PendingChanges = nil
		sync.ConflictIDs = nil
	}
	m.pending = nil
	m.detector.ExpireOpenConflicts()
}

// HealthStatus reports synchronization diagnostics for the session.
func (m *SyncManager) HealthStatus() entities.SyncHealth {
	m.recomputeProgress()
	open := len(m.graph.OpenConflicts())
	health := entities.SyncHealth{
		Progress:       m.progress,
		IsSynchronized: m.IsSynchronized(),
		PendingChanges: len(m.pending),
		OpenConflicts:  open,
	}
	if health.Progress < degradedProgress {
		health.Issues = append(health.Issues, fmt.Sprintf("synchronization progress %.2f below %.2f", health.Progress, degradedProgress))
	}
	if health.PendingChanges > degradedPendingChanges {
		health.Issues = append(health.Issues, fmt.Sprintf("%d pending changes", health.PendingChanges))
	}
	if open > 0 {
		health.Issues = append(health.Issues, fmt.Sprintf("%d open conflicts", open))
	}
	health.Degraded = len(health.Issues) > 0
	return health
}

// recomputeProgress recalculates the fraction of current participants.
func (m *SyncManager) recomputeProgress() {
	if len(m.participants) == 0 {
		m.progress = 1
		return
	}
	current := 0
	for _, sync := range m.participants {
		if sync.IsCurrent {
			current++
		}
	}
	m.progress = float64(current) / float64(len(m.participants))
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
