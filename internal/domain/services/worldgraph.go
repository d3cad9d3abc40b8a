package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
)

// lowConfidenceThreshold flags entities whose confidence has decayed enough
// to warrant review during validation.
const lowConfidenceThreshold = 0.3

// WorldGraph is the in-memory consistency database for one session: entities,
// relationships, facts, conflicts and validation rules. It performs no
// locking of its own; callers serialize access through the owning session's
// critical section.
type WorldGraph struct {
	sessionID string
	now       ports.Clock

	entities      map[string]*entities.WorldEntity
	relationships map[string]*entities.WorldRelationship
	facts         map[string]*entities.WorldFact
	conflicts     map[string]*entities.WorldConflict
	rules         []entities.WorldRule
}

// NewWorldGraph creates an empty world graph for a session.
func NewWorldGraph(sessionID string, now ports.Clock) *WorldGraph {
	if now == nil {
		now = time.Now
	}
	return &WorldGraph{
		sessionID:     sessionID,
		now:           now,
		entities:      make(map[string]*entities.WorldEntity),
		relationships: make(map[string]*entities.WorldRelationship),
		facts:         make(map[string]*entities.WorldFact),
		conflicts:     make(map[string]*entities.WorldConflict),
	}
}

// SessionID returns the owning session id.
func (g *WorldGraph) SessionID() string { return g.sessionID }

// CreateEntityInput describes a new world entity.
type CreateEntityInput struct {
	Type       entities.EntityType
	Name       string
	Aliases    []string
	Status     entities.EntityStatus
	Confidence *float64
	Tags       []string
	Location   string
	Properties map[string]any
}

// CreateEntity registers a new entity. Creation always succeeds once input is
// well formed; duplicate detection runs as a separate side effect and never
// blocks the create.
func (g *WorldGraph) CreateEntity(input CreateEntityInput) (*entities.WorldEntity, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: entity name is required", ErrInvalidInput)
	}
	if !entities.ValidEntityType(input.Type) {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, input.Type)
	}

	confidence := entities.DefaultConfidence
	if input.Confidence != nil {
		confidence = entities.ClampConfidence(*input.Confidence)
	}
	status := input.Status
	if status == "" {
		status = entities.StatusUnknown
	}

	now := g.now()
	entity := &entities.WorldEntity{
		ID:             uuid.New().String(),
		SessionID:      g.sessionID,
		Type:           input.Type,
		Name:           strings.TrimSpace(input.Name),
		NormalizedName: entities.NormalizeName(input.Name),
		Aliases:        input.Aliases,
		Status:         status,
		Confidence:     confidence,
		Properties:     input.Properties,
		Tags:           input.Tags,
		Location:       input.Location,
		ValidFrom:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if entity.Properties == nil {
		entity.Properties = make(map[string]any)
	}
	if input.Location != "" {
		entity.LocationHistory = []entities.LocationEntry{{Location: input.Location, ArrivedAt: now}}
	}

	g.entities[entity.ID] = entity
	return entity, nil
}

// Entity returns an entity by id, or nil.
func (g *WorldGraph) Entity(id string) *entities.WorldEntity {
	return g.entities[id]
}

// CreateRelationshipInput describes a new relationship.
type CreateRelationshipInput struct {
	SubjectID  string
	ObjectID   string
	Type       entities.RelationType
	Strength   float64
	Mutual     bool
	Confidence *float64
}

// CreateRelationship links two existing entities. A mutual relationship
// atomically creates a reciprocal edge carrying the same metadata.
func (g *WorldGraph) CreateRelationship(input CreateRelationshipInput) (*entities.WorldRelationship, error) {
	subject, ok := g.entities[input.SubjectID]
	if !ok {
		return nil, fmt.Errorf("%w: subject %s", ErrEntityNotFound, input.SubjectID)
	}
	object, ok := g.entities[input.ObjectID]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", ErrEntityNotFound, input.ObjectID)
	}
	if !entities.RelationPermitted(subject.Type, input.Type) {
		return nil, fmt.Errorf("%w: %s cannot be subject of %s", ErrInvalidRelationship, subject.Type, input.Type)
	}
	if input.Mutual && !entities.RelationPermitted(object.Type, input.Type) {
		return nil, fmt.Errorf("%w: %s cannot be subject of %s", ErrInvalidRelationship, object.Type, input.Type)
	}

	confidence := entities.DefaultConfidence
	if input.Confidence != nil {
		confidence = entities.ClampConfidence(*input.Confidence)
	}

	now := g.now()
	rel := &entities.WorldRelationship{
		ID:         uuid.New().String(),
		SessionID:  g.sessionID,
		SubjectID:  input.SubjectID,
		ObjectID:   input.ObjectID,
		Type:       input.Type,
		Strength:   entities.ClampStrength(input.Strength),
		Mutual:     input.Mutual,
		Confidence: confidence,
		ValidFrom:  now,
		CreatedAt:  now,
	}
	g.relationships[rel.ID] = rel

	if input.Mutual {
		twin := *rel
		twin.ID = uuid.New().String()
		twin.SubjectID = rel.ObjectID
		twin.ObjectID = rel.SubjectID
		twin.ReciprocalID = rel.ID
		rel.ReciprocalID = twin.ID
		g.relationships[twin.ID] = &twin
	}

	return rel, nil
}

// Relationship returns a relationship by id, or nil.
func (g *WorldGraph) Relationship(id string) *entities.WorldRelationship {
	return g.relationships[id]
}

// InvalidateRelationship closes a relationship's validity window. The twin of
// a mutual relationship is invalidated with it.
func (g *WorldGraph) InvalidateRelationship(id string) error {
	rel, ok := g.relationships[id]
	if !ok {
		return fmt.Errorf("%w: relationship %s", ErrEntityNotFound, id)
	}
	now := g.now()
	rel.ValidUntil = &now
	if rel.ReciprocalID != "" {
		if twin, ok := g.relationships[rel.ReciprocalID]; ok && twin.ValidUntil == nil {
			twin.ValidUntil = &now
		}
	}
	return nil
}

// UpdateFactInput describes a property assertion.
type UpdateFactInput struct {
	SubjectID  string
	Key        string
	Value      any
	Confidence *float64
	RecordedBy string
}

// UpdateFact records a new assertion about an entity property. The prior
// value is preserved on the fact and the entity's property map is updated in
// place. Contradiction detection against other facts on the same key is a
// separate detector pass.
func (g *WorldGraph) UpdateFact(input UpdateFactInput) (*entities.WorldFact, error) {
	subject, ok := g.entities[input.SubjectID]
	if !ok {
		return nil, fmt.Errorf("%w: subject %s", ErrEntityNotFound, input.SubjectID)
	}
	if strings.TrimSpace(input.Key) == "" {
		return nil, fmt.Errorf("%w: fact key is required", ErrInvalidInput)
	}

	confidence := entities.DefaultConfidence
	if input.Confidence != nil {
		confidence = entities.ClampConfidence(*input.Confidence)
	}

	now := g.now()
	history := g.factHistory(input.SubjectID, input.Key)
	fact := &entities.WorldFact{
		ID:            uuid.New().String(),
		SessionID:     g.sessionID,
		SubjectID:     input.SubjectID,
		Key:           input.Key,
		Value:         input.Value,
		PreviousValue: subject.Properties[input.Key],
		Confidence:    confidence,
		RecordedBy:    input.RecordedBy,
		ValidFrom:     now,
		CreatedAt:     now,
		ConfidenceHistory: append(history, entities.ConfidenceSample{
			Confidence: confidence, Source: input.RecordedBy, RecordedAt: now,
		}),
	}

	subject.Properties[input.Key] = input.Value
	subject.UpdatedAt = now
	g.facts[fact.ID] = fact
	return fact, nil
}

// factHistory returns a copy of the newest prior assertion's confidence
// history for a subject and key, so successive assertions accumulate samples.
func (g *WorldGraph) factHistory(subjectID, key string) []entities.ConfidenceSample {
	var newest *entities.WorldFact
	for _, f := range g.facts {
		if f.SubjectID != subjectID || f.Key != key {
			continue
		}
		if newest == nil || f.CreatedAt.After(newest.CreatedAt) {
			newest = f
		}
	}
	if newest == nil {
		return nil
	}
	out := make([]entities.ConfidenceSample, len(newest.ConfidenceHistory))
	copy(out, newest.ConfidenceHistory)
	return out
}

// Fact returns a fact by id, or nil.
func (g *WorldGraph) Fact(id string) *entities.WorldFact {
	return g.facts[id]
}

// InvalidateFact closes a fact's validity window.
func (g *WorldGraph) InvalidateFact(id string) error {
	fact, ok := g.facts[id]
	if !ok {
		return fmt.Errorf("%w: fact %s", ErrEntityNotFound, id)
	}
	now := g.now()
	fact.ValidUntil = &now
	return nil
}

// MoveEntity relocates an entity and appends to its location history.
func (g *WorldGraph) MoveEntity(entityID, location string) error {
	entity, ok := g.entities[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	now := g.now()
	entity.Location = location
	entity.LocationHistory = append(entity.LocationHistory, entities.LocationEntry{
		Location:  location,
		ArrivedAt: now,
	})
	entity.UpdatedAt = now
	return nil
}

// EntityQuery filters entity lookups. Zero-valued fields are ignored.
type EntityQuery struct {
	Type          entities.EntityType
	Status        entities.EntityStatus
	Tags          []string
	SearchText    string
	MinConfidence float64
	ValidAt       *time.Time
}

// QueryEntities returns entities matching every supplied predicate, ordered
// by creation time.
func (g *WorldGraph) QueryEntities(q EntityQuery) []entities.WorldEntity {
	search := entities.NormalizeName(q.SearchText)
	var out []entities.WorldEntity
	for _, e := range g.entities {
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if q.Status != "" && e.Status != q.Status {
			continue
		}
		if e.Confidence < q.MinConfidence {
			continue
		}
		if q.ValidAt != nil && !e.ValidAt(*q.ValidAt) {
			continue
		}
		if len(q.Tags) > 0 && !hasAllTags(e, q.Tags) {
			continue
		}
		if search != "" && !entityMatchesText(e, search) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func hasAllTags(e *entities.WorldEntity, tags []string) bool {
	for _, t := range tags {
		if !e.HasTag(t) {
			return false
		}
	}
	return true
}

func entityMatchesText(e *entities.WorldEntity, search string) bool {
	if strings.Contains(e.NormalizedName, search) {
		return true
	}
	for _, alias := range e.Aliases {
		if strings.Contains(entities.NormalizeName(alias), search) {
			return true
		}
	}
	return false
}

// RelationshipQuery filters relationship lookups.
type RelationshipQuery struct {
	SubjectID     string
	ObjectID      string
	Type          entities.RelationType
	MinConfidence float64
	ValidAt       *time.Time
}

// QueryRelationships returns relationships matching every supplied predicate.
func (g *WorldGraph) QueryRelationships(q RelationshipQuery) []entities.WorldRelationship {
	var out []entities.WorldRelationship
	for _, r := range g.relationships {
		if q.SubjectID != "" && r.SubjectID != q.SubjectID {
			continue
		}
		if q.ObjectID != "" && r.ObjectID != q.ObjectID {
			continue
		}
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if r.Confidence < q.MinConfidence {
			continue
		}
		if q.ValidAt != nil && !r.ValidAt(*q.ValidAt) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// FactQuery filters fact lookups.
type FactQuery struct {
	SubjectID     string
	Key           string
	MinConfidence float64
	ValidAt       *time.Time
}

// QueryFacts returns facts matching every supplied predicate. Temporal
// filtering is the only visibility rule; there is no separate current-value
// cache.
func (g *WorldGraph) QueryFacts(q FactQuery) []entities.WorldFact {
	var out []entities.WorldFact
	for _, f := range g.facts {
		if q.SubjectID != "" && f.SubjectID != q.SubjectID {
			continue
		}
		if q.Key != "" && f.Key != q.Key {
			continue
		}
		if f.Confidence < q.MinConfidence {
			continue
		}
		if q.ValidAt != nil && !f.ValidAt(*q.ValidAt) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// RegisterConflict stores a detected conflict. Returns the stored record.
func (g *WorldGraph) RegisterConflict(conflict *entities.WorldConflict) *entities.WorldConflict {
	if conflict.ID == "" {
		conflict.ID = uuid.New().String()
	}
	if conflict.Status == "" {
		conflict.Status = entities.ConflictOpen
	}
	conflict.SessionID = g.sessionID
	if conflict.CreatedAt.IsZero() {
		conflict.CreatedAt = g.now()
	}
	g.conflicts[conflict.ID] = conflict
	return conflict
}

// Conflict returns a conflict by id, or nil.
func (g *WorldGraph) Conflict(id string) *entities.WorldConflict {
	return g.conflicts[id]
}

// OpenConflicts returns all conflicts still in the open state, oldest first.
func (g *WorldGraph) OpenConflicts() []*entities.WorldConflict {
	var out []*entities.WorldConflict
	for _, c := range g.conflicts {
		if !c.Closed() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AllConflicts returns every conflict, oldest first.
func (g *WorldGraph) AllConflicts() []entities.WorldConflict {
	out := make([]entities.WorldConflict, 0, len(g.conflicts))
	for _, c := range g.conflicts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AddRule registers a declarative validation rule.
func (g *WorldGraph) AddRule(rule entities.WorldRule) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	g.rules = append(g.rules, rule)
}

// Validate runs a full consistency scan: declarative rules, built-in checks
// for orphaned relationship endpoints and low-confidence entities, plus any
// outstanding conflicts. Issues are ordered by descending severity.
func (g *WorldGraph) Validate() entities.ValidationReport {
	var issues []entities.ValidationIssue

	for _, r := range g.relationships {
		if _, ok := g.entities[r.SubjectID]; !ok {
			issues = append(issues, entities.ValidationIssue{
				Severity: entities.SeverityHigh,
				RefID:    r.ID,
				Message:  fmt.Sprintf("relationship %s references missing subject %s", r.ID, r.SubjectID),
			})
		}
		if _, ok := g.entities[r.ObjectID]; !ok {
			issues = append(issues, entities.ValidationIssue{
				Severity: entities.SeverityHigh,
				RefID:    r.ID,
				Message:  fmt.Sprintf("relationship %s references missing object %s", r.ID, r.ObjectID),
			})
		}
	}

	for _, e := range g.entities {
		if e.Confidence < lowConfidenceThreshold {
			issues = append(issues, entities.ValidationIssue{
				Severity: entities.SeverityLow,
				RefID:    e.ID,
				Message:  fmt.Sprintf("entity %q has low confidence %.2f", e.Name, e.Confidence),
			})
		}
	}

	for _, rule := range g.rules {
		issues = append(issues, g.applyRule(rule)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() > issues[j].Severity.Rank()
	})

	open := g.OpenConflicts()
	openCopies := make([]entities.WorldConflict, len(open))
	for i, c := range open {
		openCopies[i] = *c
	}

	report := entities.ValidationReport{
		Valid:         len(issues) == 0 && len(open) == 0,
		Issues:        issues,
		OpenConflicts: openCopies,
	}
	if len(open) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("resolve %d open conflicts (weighted or most_recent strategy)", len(open)))
	}
	for _, issue := range issues {
		if issue.Severity == entities.SeverityHigh || issue.Severity == entities.SeverityCritical {
			report.Recommendations = append(report.Recommendations, "review high-severity issues before the next turn")
			break
		}
	}
	return report
}

// applyRule evaluates one declarative rule over its target records.
func (g *WorldGraph) applyRule(rule entities.WorldRule) []entities.ValidationIssue {
	var issues []entities.ValidationIssue
	switch rule.Target {
	case entities.RuleTargetEntity:
		for _, e := range g.entities {
			if rule.EntityType != "" && e.Type != rule.EntityType {
				continue
			}
			if ruleMatches(rule, entityField(e, rule.Field)) {
				issues = append(issues, entities.ValidationIssue{
					Severity: rule.Severity,
					RuleName: rule.Name,
					RefID:    e.ID,
					Message:  rule.Message,
				})
			}
		}
	case entities.RuleTargetRelationship:
		for _, r := range g.relationships {
			if rule.RelationType != "" && r.Type != rule.RelationType {
				continue
			}
			if ruleMatches(rule, relationshipField(r, rule.Field)) {
				issues = append(issues, entities.ValidationIssue{
					Severity: rule.Severity,
					RuleName: rule.Name,
					RefID:    r.ID,
					Message:  rule.Message,
				})
			}
		}
	}
	return issues
}

func entityField(e *entities.WorldEntity, field string) any {
	switch field {
	case "status":
		return string(e.Status)
	case "confidence":
		return e.Confidence
	case "location":
		return e.Location
	default:
		return e.Properties[field]
	}
}

func relationshipField(r *entities.WorldRelationship, field string) any {
	switch field {
	case "strength":
		return r.Strength
	case "confidence":
		return r.Confidence
	default:
		return nil
	}
}

// ruleMatches reports whether a record value trips the rule condition.
func ruleMatches(rule entities.WorldRule, value any) bool {
	switch rule.Op {
	case entities.OpEquals:
		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", rule.Value)
	case entities.OpNotEquals:
		return fmt.Sprintf("%v", value) != fmt.Sprintf("%v", rule.Value)
	case entities.OpBelow, entities.OpAbove:
		v, okV := toFloat(value)
		threshold, okT := toFloat(rule.Value)
		if !okV || !okT {
			return false
		}
		if rule.Op == entities.OpBelow {
			return v < threshold
		}
		return v > threshold
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Snapshot exports an immutable point-in-time copy of the graph with
// aggregate metrics.
func (g *WorldGraph) Snapshot() *entities.WorldSnapshot {
	snap := &entities.WorldSnapshot{
		SessionID: g.sessionID,
		TakenAt:   g.now(),
	}

	var confidenceSum float64
	var confidenceN int
	for _, e := range g.entities {
		snap.Entities = append(snap.Entities, *e)
		confidenceSum += e.Confidence
		confidenceN++
	}
	for _, r := range g.relationships {
		snap.Relationships = append(snap.Relationships, *r)
		confidenceSum += r.Confidence
		confidenceN++
	}
	for _, f := range g.facts {
		snap.Facts = append(snap.Facts, *f)
		confidenceSum += f.Confidence
		confidenceN++
	}
	snap.Conflicts = g.AllConflicts()

	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].CreatedAt.Before(snap.Entities[j].CreatedAt) })
	sort.Slice(snap.Relationships, func(i, j int) bool { return snap.Relationships[i].CreatedAt.Before(snap.Relationships[j].CreatedAt) })
	sort.Slice(snap.Facts, func(i, j int) bool { return snap.Facts[i].CreatedAt.Before(snap.Facts[j].CreatedAt) })

	open := 0
	for i := range snap.Conflicts {
		if snap.Conflicts[i].Status == entities.ConflictOpen {
			open++
		}
	}
	snap.Metrics = entities.WorldMetrics{
		EntityCount:       len(snap.Entities),
		RelationshipCount: len(snap.Relationships),
		FactCount:         len(snap.Facts),
		OpenConflicts:     open,
	}
	if confidenceN > 0 {
		snap.Metrics.AverageConfidence = confidenceSum / float64(confidenceN)
	}
	return snap
}
