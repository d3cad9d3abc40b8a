package entities

// RuleTarget selects which record kind a world rule inspects.
type RuleTarget string

const (
	RuleTargetEntity       RuleTarget = "entity"
	RuleTargetRelationship RuleTarget = "relationship"
)

// RuleOp is the comparison applied by a rule condition.
type RuleOp string

const (
	OpEquals    RuleOp = "equals"
	OpNotEquals RuleOp = "not_equals"
	OpBelow     RuleOp = "below"
	OpAbove     RuleOp = "above"
)

// WorldRule is a declarative consistency check evaluated during validation.
// Field names a record attribute ("status", "confidence", "strength"),
// EntityType/RelationType narrow which records the rule applies to (empty
// means all).
type WorldRule struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Target       RuleTarget       `json:"target"`
	EntityType   EntityType       `json:"entity_type,omitempty"`
	RelationType RelationType     `json:"relation_type,omitempty"`
	Field        string           `json:"field"`
	Op           RuleOp           `json:"op"`
	Value        any              `json:"value"`
	Severity     ConflictSeverity `json:"severity"`
	Message      string           `json:"message"`
}

// ValidationIssue is one finding from a consistency scan.
type ValidationIssue struct {
	Severity ConflictSeverity `json:"severity"`
	RuleName string           `json:"rule_name,omitempty"`
	RefID    string           `json:"ref_id"`
	Message  string           `json:"message"`
}

// ValidationReport is the full result of a world consistency scan, issues
// ordered by descending severity.
type ValidationReport struct {
	Valid           bool              `json:"valid"`
	Issues          []ValidationIssue `json:"issues,omitempty"`
	OpenConflicts   []WorldConflict   `json:"open_conflicts,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
}
