package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
)

// DefaultTurnTimeLimit bounds a turn when the session doesn't configure one.
const DefaultTurnTimeLimit = 5 * time.Minute

// TurnCoordinator governs turn order, the per-turn lifecycle state machine
// and deadlines for one session. It performs no locking; the owning session's
// critical section serializes all calls, including the timeout path.
type TurnCoordinator struct {
	sessionID  string
	now        ports.Clock
	scheduler  ports.Scheduler
	classifier ports.TurnClassifier
	timeLimit  time.Duration

	// onTimeout re-enters the session critical section before expiring a
	// turn; set once at wiring time.
	onTimeout func(turnID string)

	order         entities.TurnOrder
	current       *entities.TurnState
	history       []entities.TurnState
	turnCount     int
	cancelTimeout ports.CancelTimer
}

// NewTurnCoordinator creates a coordinator for one session.
func NewTurnCoordinator(sessionID string, timeLimit time.Duration, now ports.Clock, scheduler ports.Scheduler, classifier ports.TurnClassifier) *TurnCoordinator {
	if now == nil {
		now = time.Now
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTurnTimeLimit
	}
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &TurnCoordinator{
		sessionID:  sessionID,
		now:        now,
		scheduler:  scheduler,
		classifier: classifier,
		timeLimit:  timeLimit,
	}
}

// SetTimeoutHandler installs the callback the deadline timer fires into. The
// handler must re-acquire the session lock and call ExpireTurn.
func (t *TurnCoordinator) SetTimeoutHandler(fn func(turnID string)) {
	t.onTimeout = fn
}

// InitializeOrder rebuilds the rotation from the given participants: only
// active participants that can control entities are eligible, DM roles sort
// first, then join time.
func (t *TurnCoordinator) InitializeOrder(participants []entities.SessionParticipant) entities.TurnOrder {
	eligible := make([]entities.SessionParticipant, 0, len(participants))
	for _, p := range participants {
		if p.Eligible() {
			eligible = append(eligible, p)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		iDM := eligible[i].Role == entities.RoleDM
		jDM := eligible[j].Role == entities.RoleDM
		if iDM != jDM {
			return iDM
		}
		return eligible[i].JoinedAt.Before(eligible[j].JoinedAt)
	})

	order := make([]string, len(eligible))
	for i, p := range eligible {
		order[i] = p.ID
	}

	// Keep the current owner's position when the rotation is rebuilt
	// mid-turn so the in-flight turn stays anchored.
	currentIndex := 0
	if t.current != nil && !t.current.Status.Terminal() {
		for i, id := range order {
			if id == t.current.ParticipantID {
				currentIndex = i
				break
			}
		}
	}

	t.order = entities.TurnOrder{
		Order:        order,
		CurrentIndex: currentIndex,
		CycleCount:   t.order.CycleCount,
	}
	return t.order
}

// Order returns a copy of the current rotation.
func (t *TurnCoordinator) Order() entities.TurnOrder {
	out := t.order
	out.Order = append([]string(nil), t.order.Order...)
	return out
}

// CurrentTurn returns the in-flight turn, or nil.
func (t *TurnCoordinator) CurrentTurn() *entities.TurnState {
	return t.current
}

// History returns the finished turns in completion order.
func (t *TurnCoordinator) History() []entities.TurnState {
	return append([]entities.TurnState(nil), t.history...)
}

// TurnCount returns how many turns have been started in the session.
func (t *TurnCoordinator) TurnCount() int { return t.turnCount }

// StartNextTurn advances the rotation and opens a turn slot for the chosen
// participant. The next owner is picked at (currentIndex+1) mod N; the stored
// index then becomes the owner's position in the possibly-resorted order, and
// the cycle count increments when the index wraps to 0 from elsewhere. A
// deadline callback is scheduled at the time limit.
func (t *TurnCoordinator) StartNextTurn() (*entities.TurnState, error) {
	n := len(t.order.Order)
	if n == 0 {
		return nil, ErrNoEligibleParticipants
	}
	if t.current != nil && !t.current.Status.Terminal() {
		return nil, fmt.Errorf("%w: turn %d", ErrTurnInProgress, t.current.TurnNumber)
	}

	startIndex := t.order.CurrentIndex
	nextIndex := (startIndex + 1) % n
	owner := t.order.Order[nextIndex]

	t.order.CurrentIndex = t.order.IndexOf(owner)
	if t.order.CurrentIndex == 0 && startIndex != 0 {
		t.order.CycleCount++
	}

	now := t.now()
	t.turnCount++
	turn := &entities.TurnState{
		ID:            uuid.New().String(),
		SessionID:     t.sessionID,
		TurnNumber:    t.turnCount,
		ParticipantID: owner,
		Status:        entities.TurnPending,
		StartedAt:     now,
		EndsAt:        now.Add(t.timeLimit),
	}
	t.current = turn

	if t.scheduler != nil && t.onTimeout != nil {
		turnID := turn.ID
		t.cancelTimeout = t.scheduler.After(t.timeLimit, func() {
			t.onTimeout(turnID)
		})
	}
	return turn, nil
}

// SubmitAction records the owner's action for the in-flight turn, classifies
// it and transitions the turn to active. Applying the action's world changes
// is the caller's concern.
func (t *TurnCoordinator) SubmitAction(ctx context.Context, participantID string, action entities.TurnAction) (*entities.TurnState, error) {
	if t.current == nil || t.current.ParticipantID != participantID {
		return nil, ErrNotYourTurn
	}
	if !t.current.Status.AcceptsAction() {
		return nil, fmt.Errorf("%w: status %s", ErrTurnNotAcceptingActions, t.current.Status)
	}

	action.SubmittedAt = t.now()
	turnType, err := t.classifier.Classify(ctx, action.Description)
	if err != nil {
		// Classification is advisory; fall back to the default type.
		turnType = entities.TurnTypeAction
	}

	t.current.Action = &action
	t.current.Type = turnType
	t.current.Status = entities.TurnActive
	return t.current, nil
}

// CompleteTurn finishes the in-flight turn. Fails unless the caller owns the
// turn; completing a terminal turn is rejected.
func (t *TurnCoordinator) CompleteTurn(participantID string) (*entities.TurnState, error) {
	return t.finishTurn(participantID, entities.TurnCompleted)
}

// SkipTurn forfeits the in-flight turn.
func (t *TurnCoordinator) SkipTurn(participantID string) (*entities.TurnState, error) {
	return t.finishTurn(participantID, entities.TurnSkipped)
}

func (t *TurnCoordinator) finishTurn(participantID string, status entities.TurnStatus) (*entities.TurnState, error) {
	if t.current == nil || t.current.ParticipantID != participantID {
		return nil, ErrNotYourTurn
	}
	if t.current.Status.Terminal() {
		return nil, fmt.Errorf("%w: status %s", ErrTurnAlreadyCompleted, t.current.Status)
	}

	t.stopTimer()
	now := t.now()
	t.current.Status = status
	t.current.EndedAt = &now
	t.history = append(t.history, *t.current)
	return t.current, nil
}

// ExpireTurn times out a turn by id. It is a no-op when the turn has already
// reached a terminal state or been superseded, which makes a late-firing
// timer safe against a concurrent complete or skip. Reports whether the turn
// was expired.
func (t *TurnCoordinator) ExpireTurn(turnID string) bool {
	if t.current == nil || t.current.ID != turnID || t.current.Status.Terminal() {
		return false
	}
	now := t.now()
	t.current.Status = entities.TurnTimeout
	t.current.EndedAt = &now
	t.history = append(t.history, *t.current)
	t.cancelTimeout = nil
	return true
}

func (t *TurnCoordinator) stopTimer() {
	if t.cancelTimeout != nil {
		// Cancellation may lose the race with an in-flight timer; the
		// turn-id check in ExpireTurn is the safety net.
		t.cancelTimeout()
		t.cancelTimeout = nil
	}
}

// DetectTurnConflict registers a character_action conflict when the given
// turn's deadline window overlaps a recent turn of the same inferred type.
// Returns the registered conflict, or nil.
func (t *TurnCoordinator) DetectTurnConflict(graph *WorldGraph, turn *entities.TurnState) *entities.WorldConflict {
	if turn == nil || turn.Type == "" {
		return nil
	}
	for i := len(t.history) - 1; i >= 0; i-- {
		prior := &t.history[i]
		if prior.ID == turn.ID || prior.Type != turn.Type {
			continue
		}
		if prior.ParticipantID == turn.ParticipantID {
			continue
		}
		if prior.EndsAt.Before(turn.StartedAt) {
			break
		}
		return graph.RegisterConflict(&entities.WorldConflict{
			Type:                 entities.ConflictTurnAction,
			Severity:             entities.SeverityMedium,
			FirstRefID:           prior.ID,
			SecondRefID:          turn.ID,
			AffectedParticipants: []string{prior.ParticipantID, turn.ParticipantID},
			Description:          fmt.Sprintf("concurrent %s turns by different participants", turn.Type),
		})
	}
	return nil
}

// MissedTurns returns finished turns with a number greater than afterTurn.
func (t *TurnCoordinator) MissedTurns(afterTurn int) []entities.TurnState {
	var out []entities.TurnState
	for _, turn := range t.history {
		if turn.TurnNumber > afterTurn {
			out = append(out, turn)
		}
	}
	return out
}
