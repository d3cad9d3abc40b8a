package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/services"
)

// Report summarizes one scenario replay.
type Report struct {
	SessionID     string                    `json:"session_id"`
	TurnsPlayed   int                       `json:"turns_played"`
	TurnsApplied  int                       `json:"turns_applied"`
	TurnsHeld     int                       `json:"turns_held"`
	OpenConflicts int                       `json:"open_conflicts"`
	Health        entities.SyncHealth       `json:"health"`
	Validation    entities.ValidationReport `json:"validation"`
}

// Runner replays a scenario against a session service.
type Runner struct {
	sessions *services.SessionService
}

// NewRunner creates a runner bound to a session service.
func NewRunner(sessions *services.SessionService) *Runner {
	return &Runner{sessions: sessions}
}

// Run replays the scenario: it creates the session, joins every participant,
// seeds the world and plays the scripted turns in rotation order.
func (r *Runner) Run(ctx context.Context, scn *Scenario) (*Report, error) {
	host := scn.Participants[0]
	info, err := r.sessions.CreateSession(ctx, services.CreateSessionInput{
		Name:     scn.Name,
		HostID:   host.UserID,
		HostName: host.Name,
		Settings: services.SessionSettings{
			TurnTimeLimit:   scn.Settings.TurnTimeLimit,
			MaxParticipants: scn.Settings.MaxParticipants,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	// user_id -> participant id, host first
	members := make(map[string]string, len(scn.Participants))
	for _, p := range info.Participants {
		members[p.UserID] = p.ID
	}
	for _, p := range scn.Participants[1:] {
		joined, err := r.sessions.JoinSession(ctx, info.ID, services.JoinSessionInput{
			UserID: p.UserID,
			Name:   p.Name,
			Role:   entities.ParticipantRole(p.Role),
		})
		if err != nil {
			return nil, fmt.Errorf("joining %s: %w", p.UserID, err)
		}
		members[p.UserID] = joined.ID
	}

	refs, err := r.seedWorld(ctx, info.ID, scn)
	if err != nil {
		return nil, err
	}

	report := &Report{SessionID: info.ID}
	for i, scripted := range scn.Turns {
		turn, err := r.sessions.StartNextTurn(ctx, info.ID)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		owner := members[scripted.Participant]
		if owner != turn.ParticipantID {
			return nil, fmt.Errorf("turn %d: scripted participant %s is not the rotation owner", i, scripted.Participant)
		}

		if scripted.Skip {
			if _, err := r.sessions.SkipTurn(ctx, info.ID, owner); err != nil {
				return nil, fmt.Errorf("turn %d: %w", i, err)
			}
			report.TurnsPlayed++
			continue
		}

		changes, err := buildChanges(scripted.Changes, refs)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		action := entities.TurnAction{
			Description: scripted.Description,
			SubmittedAt: time.Now(),
		}
		for _, payload := range changes {
			action.Changes = append(action.Changes, entities.WorldChange{Payload: payload})
		}

		_, applied, err := r.sessions.SubmitTurnAction(ctx, info.ID, owner, action)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		if applied {
			report.TurnsApplied++
		} else {
			report.TurnsHeld++
		}
		if _, err := r.sessions.CompleteTurn(ctx, info.ID, owner); err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		report.TurnsPlayed++
	}

	open, err := r.sessions.OpenConflicts(info.ID)
	if err != nil {
		return nil, err
	}
	report.OpenConflicts = len(open)
	if report.Health, err = r.sessions.SyncHealth(info.ID); err != nil {
		return nil, err
	}
	if report.Validation, err = r.sessions.ValidateWorld(info.ID); err != nil {
		return nil, err
	}
	return report, nil
}

// seedWorld creates the scenario's initial entities, relationships and facts.
// Returns the ref -> entity id mapping used by scripted changes.
func (r *Runner) seedWorld(ctx context.Context, sessionID string, scn *Scenario) (map[string]string, error) {
	refs := make(map[string]string, len(scn.World.Entities))
	for _, e := range scn.World.Entities {
		created, err := r.sessions.CreateEntity(ctx, sessionID, services.CreateEntityInput{
			Type:       entities.EntityType(e.Type),
			Name:       e.Name,
			Status:     entities.EntityStatus(e.Status),
			Confidence: e.Confidence,
			Tags:       e.Tags,
			Location:   e.Location,
		})
		if err != nil {
			return nil, fmt.Errorf("seeding entity %s: %w", e.Ref, err)
		}
		refs[e.Ref] = created.ID
	}

	for _, rel := range scn.World.Relationships {
		_, err := r.sessions.CreateRelationship(ctx, sessionID, services.CreateRelationshipInput{
			SubjectID: refs[rel.Subject],
			ObjectID:  refs[rel.Object],
			Type:      entities.RelationType(rel.Type),
			Strength:  rel.Strength,
			Mutual:    rel.Mutual,
		})
		if err != nil {
			return nil, fmt.Errorf("seeding relationship %s->%s: %w", rel.Subject, rel.Object, err)
		}
	}

	for _, f := range scn.World.Facts {
		input := services.UpdateFactInput{
			SubjectID: refs[f.Entity],
			Key:       f.Key,
			Value:     f.Value,
		}
		if f.Confidence > 0 {
			c := f.Confidence
			input.Confidence = &c
		}
		if _, err := r.sessions.UpdateFact(ctx, sessionID, input); err != nil {
			return nil, fmt.Errorf("seeding fact %s.%s: %w", f.Entity, f.Key, err)
		}
	}
	return refs, nil
}

// buildChanges converts scripted changes to domain payloads, resolving entity
// refs.
func buildChanges(changes []Change, refs map[string]string) ([]entities.ChangePayload, error) {
	out := make([]entities.ChangePayload, 0, len(changes))
	for i, c := range changes {
		switch entities.ChangeKind(c.Kind) {
		case entities.ChangeEntityUpdate:
			id, ok := refs[c.Entity]
			if !ok {
				return nil, fmt.Errorf("change %d: unknown entity ref %s", i, c.Entity)
			}
			out = append(out, entities.EntityUpdate{
				EntityID:   id,
				Name:       c.Name,
				Status:     entities.EntityStatus(c.Status),
				Confidence: c.Confidence,
				AddTags:    c.AddTags,
			})
		case entities.ChangeRelationship:
			subject, ok := refs[c.Subject]
			if !ok {
				return nil, fmt.Errorf("change %d: unknown entity ref %s", i, c.Subject)
			}
			object, ok := refs[c.Object]
			if !ok {
				return nil, fmt.Errorf("change %d: unknown entity ref %s", i, c.Object)
			}
			change := entities.RelationshipChange{
				SubjectID:  subject,
				ObjectID:   object,
				Type:       entities.RelationType(c.Type),
				Strength:   c.Strength,
				Mutual:     c.Mutual,
				Invalidate: c.Invalidate,
			}
			if c.Confidence != nil {
				change.Confidence = *c.Confidence
			}
			out = append(out, change)
		case entities.ChangeFactAssertion:
			id, ok := refs[c.Entity]
			if !ok {
				return nil, fmt.Errorf("change %d: unknown entity ref %s", i, c.Entity)
			}
			change := entities.FactAssertion{
				EntityID: id,
				Key:      c.Key,
				Value:    c.Value,
			}
			if c.Confidence != nil {
				change.Confidence = *c.Confidence
			}
			out = append(out, change)
		case entities.ChangeEntityMove:
			id, ok := refs[c.Entity]
			if !ok {
				return nil, fmt.Errorf("change %d: unknown entity ref %s", i, c.Entity)
			}
			out = append(out, entities.EntityMove{
				EntityID: id,
				Location: c.Location,
			})
		default:
			return nil, fmt.Errorf("change %d: unknown kind %q", i, c.Kind)
		}
	}
	return out, nil
}
