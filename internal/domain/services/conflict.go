package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
)

const (
	// duplicateThreshold is the similarity score above which two entities
	// are flagged as probable duplicates.
	duplicateThreshold = 0.7

	// factConfidenceGap: facts with differing values contradict only when
	// their confidence scores are closer than this gap. A clearly more
	// confident fact simply wins.
	factConfidenceGap = 0.3

	// mostRecentKeep is the number of newest open conflicts the
	// most_recent strategy leaves untouched.
	mostRecentKeep = 10

	// similarityCandidates caps how many candidates a similarity index
	// lookup returns for duplicate scoring.
	similarityCandidates = 10
)

// Similarity component weights: string similarity dominates, entity type and
// tag overlap refine.
const (
	weightString = 0.5
	weightType   = 0.3
	weightTags   = 0.2
)

// ConflictDetector finds and resolves inconsistencies in a session's world
// graph: duplicate entities, contradictory relationships and facts, and
// clashing turns. An optional similarity index widens duplicate candidate
// retrieval; without one the detector scans the graph lexically.
type ConflictDetector struct {
	graph *WorldGraph
	index ports.SimilarityIndex
	now   ports.Clock
}

// NewConflictDetector creates a detector bound to one session's graph. index
// may be nil.
func NewConflictDetector(graph *WorldGraph, index ports.SimilarityIndex, now ports.Clock) *ConflictDetector {
	if now == nil {
		now = time.Now
	}
	return &ConflictDetector{graph: graph, index: index, now: now}
}

// DetectDuplicate searches for entities of the same type whose names overlap
// with the new entity. A similarity above the threshold registers an
// entity_conflict without preventing the creation. Returns the registered
// conflict, or nil.
func (d *ConflictDetector) DetectDuplicate(ctx context.Context, entity *entities.WorldEntity) *entities.WorldConflict {
	candidates := d.duplicateCandidates(ctx, entity)

	var best *entities.WorldEntity
	bestScore := 0.0
	for _, candidate := range candidates {
		if candidate.ID == entity.ID {
			continue
		}
		score := entitySimilarity(entity, candidate)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if best == nil || bestScore <= duplicateThreshold {
		return nil
	}

	return d.graph.RegisterConflict(&entities.WorldConflict{
		Type:        entities.ConflictEntity,
		Severity:    entities.SeverityMedium,
		FirstRefID:  best.ID,
		SecondRefID: entity.ID,
		Description: fmt.Sprintf("entity %q may duplicate %q (similarity %.2f)", entity.Name, best.Name, bestScore),
	})
}

// duplicateCandidates retrieves same-type entities worth scoring. With an
// index wired, retrieval goes through it; an index failure falls back to the
// lexical graph scan so detection stays best effort.
func (d *ConflictDetector) duplicateCandidates(ctx context.Context, entity *entities.WorldEntity) []*entities.WorldEntity {
	if d.index != nil {
		similar, err := d.index.FindSimilar(ctx, entity.Name, entity.Type, similarityCandidates)
		if err == nil {
			var out []*entities.WorldEntity
			for _, s := range similar {
				if e := d.graph.Entity(s.EntityID); e != nil {
					out = append(out, e)
				}
			}
			return out
		}
	}

	matches := d.graph.QueryEntities(EntityQuery{Type: entity.Type})
	out := make([]*entities.WorldEntity, 0, len(matches))
	for i := range matches {
		out = append(out, d.graph.Entity(matches[i].ID))
	}
	return out
}

// entitySimilarity scores two entities: 0.5 string similarity, 0.3 type
// match, 0.2 tag-set Jaccard overlap.
func entitySimilarity(a, b *entities.WorldEntity) float64 {
	score := weightString * stringSimilarity(a.NormalizedName, b.NormalizedName)
	if a.Type == b.Type {
		score += weightType
	}
	score += weightTags * jaccard(a.Tags, b.Tags)
	return score
}

// stringSimilarity is an edit-distance-normalized similarity in [0,1]. The
// distance and the normalizing length are both counted in runes so multibyte
// names score the same as ASCII ones.
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := math.Max(float64(utf8.RuneCountInString(a)), float64(utf8.RuneCountInString(b)))
	if longest == 0 {
		return 1
	}
	dist := float64(levenshtein.ComputeDistance(a, b))
	return 1 - dist/longest
}

// jaccard computes tag-set overlap. Two empty sets overlap fully.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	intersection := 0
	union := len(set)
	for _, t := range b {
		if set[t] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// DetectRelationshipContradiction checks a new relationship against existing
// relationships between the same ordered pair whose type conflicts with the
// new type. Both must be temporally valid simultaneously to contradict.
// Returns the registered conflict, or nil.
func (d *ConflictDetector) DetectRelationshipContradiction(rel *entities.WorldRelationship) *entities.WorldConflict {
	now := d.now()
	existing := d.graph.QueryRelationships(RelationshipQuery{
		SubjectID: rel.SubjectID,
		ObjectID:  rel.ObjectID,
		ValidAt:   &now,
	})
	for i := range existing {
		other := &existing[i]
		if other.ID == rel.ID || other.ID == rel.ReciprocalID {
			continue
		}
		if !entities.RelationsConflict(rel.Type, other.Type) {
			continue
		}
		if !rel.ValidAt(now) {
			continue
		}
		return d.graph.RegisterConflict(&entities.WorldConflict{
			Type:        entities.ConflictRelationship,
			Severity:    entities.SeverityHigh,
			FirstRefID:  other.ID,
			SecondRefID: rel.ID,
			Description: fmt.Sprintf("relationship %s contradicts existing %s between the same pair", rel.Type, other.Type),
		})
	}
	return nil
}

// DetectFactContradiction compares a new fact against other facts on the same
// (subject, key) pair valid at the same instant. Differing values with
// confidence scores within the gap register bidirectional contradiction links
// and a property_conflict per clash.
func (d *ConflictDetector) DetectFactContradiction(fact *entities.WorldFact) []*entities.WorldConflict {
	now := d.now()
	others := d.graph.QueryFacts(FactQuery{
		SubjectID: fact.SubjectID,
		Key:       fact.Key,
		ValidAt:   &now,
	})

	var conflicts []*entities.WorldConflict
	for i := range others {
		other := d.graph.Fact(others[i].ID)
		if other == nil || other.ID == fact.ID {
			continue
		}
		if fmt.Sprintf("%v", other.Value) == fmt.Sprintf("%v", fact.Value) {
			continue
		}
		if math.Abs(other.Confidence-fact.Confidence) >= factConfidenceGap {
			continue
		}

		if !fact.Contradicts(other.ID) {
			fact.ContradictsIDs = append(fact.ContradictsIDs, other.ID)
		}
		if !other.Contradicts(fact.ID) {
			other.ContradictsIDs = append(other.ContradictsIDs, fact.ID)
		}

		conflicts = append(conflicts, d.graph.RegisterConflict(&entities.WorldConflict{
			Type:        entities.ConflictProperty,
			Severity:    entities.SeverityMedium,
			FirstRefID:  other.ID,
			SecondRefID: fact.ID,
			Description: fmt.Sprintf("facts disagree on %s: %v vs %v", fact.Key, other.Value, fact.Value),
		}))
	}
	return conflicts
}

// ResolveWeighted resolves each open property conflict by invalidating the
// lower-confidence fact. Returns the number of conflicts resolved.
func (d *ConflictDetector) ResolveWeighted() int {
	now := d.now()
	resolved := 0
	for _, conflict := range d.graph.OpenConflicts() {
		if conflict.Type != entities.ConflictProperty {
			continue
		}
		first := d.graph.Fact(conflict.FirstRefID)
		second := d.graph.Fact(conflict.SecondRefID)
		if first == nil || second == nil {
			continue
		}
		loser := first
		if second.Confidence < first.Confidence {
			loser = second
		}
		loser.ValidUntil = &now
		conflict.Close(entities.ConflictResolved, entities.ResolutionWeighted, now)
		resolved++
	}
	return resolved
}

// ResolveMostRecent resolves all open conflicts except the newest
// mostRecentKeep, regardless of severity. Returns the number resolved.
func (d *ConflictDetector) ResolveMostRecent() int {
	open := d.graph.OpenConflicts()
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.After(open[j].CreatedAt) })
	if len(open) <= mostRecentKeep {
		return 0
	}

	now := d.now()
	resolved := 0
	for _, conflict := range open[mostRecentKeep:] {
		if conflict.Close(entities.ConflictResolved, entities.ResolutionMostRecent, now) {
			resolved++
		}
	}
	return resolved
}

// ResolveManual closes a single conflict with an operator-chosen terminal
// status.
func (d *ConflictDetector) ResolveManual(conflictID string, status entities.ConflictStatus) (*entities.WorldConflict, error) {
	conflict := d.graph.Conflict(conflictID)
	if conflict == nil {
		return nil, fmt.Errorf("%w: %s", ErrConflictNotFound, conflictID)
	}
	if !conflict.Close(status, entities.ResolutionManual, d.now()) {
		return nil, fmt.Errorf("%w: conflict %s is already %s", ErrInvalidInput, conflictID, conflict.Status)
	}
	return conflict, nil
}

// ExpireOpenConflicts marks every open conflict expired. Used by forced
// resynchronization as a session-wide recovery hatch.
func (d *ConflictDetector) ExpireOpenConflicts() int {
	now := d.now()
	expired := 0
	for _, conflict := range d.graph.OpenConflicts() {
		if conflict.Close(entities.ConflictExpired, "", now) {
			expired++
		}
	}
	return expired
}
