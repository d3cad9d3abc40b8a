package entities

import (
	"encoding/json"
	"time"
)

// ChangeKind discriminates world change payload variants.
type ChangeKind string

const (
	ChangeEntityUpdate  ChangeKind = "entity_update"
	ChangeRelationship  ChangeKind = "relationship_change"
	ChangeFactAssertion ChangeKind = "fact_assertion"
	ChangeEntityMove    ChangeKind = "entity_move"
)

// ChangePayload is the closed set of world edit variants. Each variant names
// the graph record it targets; two pending changes collide when their kind
// and target match.
type ChangePayload interface {
	Kind() ChangeKind
	TargetID() string
}

// EntityUpdate mutates coarse entity state. Zero-valued fields are left
// unchanged; Confidence is a pointer so 0 remains expressible.
type EntityUpdate struct {
	EntityID   string       `json:"entity_id"`
	Name       string       `json:"name,omitempty"`
	Status     EntityStatus `json:"status,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	AddTags    []string     `json:"add_tags,omitempty"`
}

func (c EntityUpdate) Kind() ChangeKind { return ChangeEntityUpdate }
func (c EntityUpdate) TargetID() string { return c.EntityID }

// RelationshipChange establishes or invalidates a relationship between two
// entities.
type RelationshipChange struct {
	SubjectID  string       `json:"subject_id"`
	ObjectID   string       `json:"object_id"`
	Type       RelationType `json:"type"`
	Strength   float64      `json:"strength,omitempty"`
	Mutual     bool         `json:"mutual,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Invalidate bool         `json:"invalidate,omitempty"`
}

func (c RelationshipChange) Kind() ChangeKind { return ChangeRelationship }

// TargetID keys the collision on the ordered (subject, object) pair, so edits
// to different relationships of the same subject do not collide.
func (c RelationshipChange) TargetID() string { return c.SubjectID + "/" + c.ObjectID }

// FactAssertion records a property value for an entity.
type FactAssertion struct {
	EntityID   string  `json:"entity_id"`
	Key        string  `json:"key"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (c FactAssertion) Kind() ChangeKind { return ChangeFactAssertion }
func (c FactAssertion) TargetID() string { return c.EntityID }

// EntityMove relocates an entity.
type EntityMove struct {
	EntityID string `json:"entity_id"`
	Location string `json:"location"`
}

func (c EntityMove) Kind() ChangeKind { return ChangeEntityMove }
func (c EntityMove) TargetID() string { return c.EntityID }

// WorldChange is one world edit submitted by a participant. Applied changes
// stay in the pending window until their submitter's turn finalizes or a sync
// pull clears them, so concurrent edits to the same target can still be
// detected against them.
type WorldChange struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	ParticipantID string        `json:"participant_id"`
	Payload       ChangePayload `json:"-"`
	Applied       bool          `json:"applied,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Collides reports whether two changes touch the same target with the same
// change kind. Changes by the same participant never collide.
func (c *WorldChange) Collides(other *WorldChange) bool {
	if c.ParticipantID == other.ParticipantID {
		return false
	}
	if c.Payload == nil || other.Payload == nil {
		return false
	}
	return c.Payload.Kind() == other.Payload.Kind() &&
		c.Payload.TargetID() == other.Payload.TargetID()
}

// changeJSON is the wire shape for a WorldChange with its tagged payload.
type changeJSON struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	ParticipantID string          `json:"participant_id"`
	Kind          ChangeKind      `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Applied       bool            `json:"applied,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MarshalJSON encodes the change with an explicit kind tag.
func (c WorldChange) MarshalJSON() ([]byte, error) {
	out := changeJSON{
		ID:            c.ID,
		SessionID:     c.SessionID,
		ParticipantID: c.ParticipantID,
		Applied:       c.Applied,
		CreatedAt:     c.CreatedAt,
	}
	if c.Payload != nil {
		out.Kind = c.Payload.Kind()
		raw, err := json.Marshal(c.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a tagged change payload back into its variant.
func (c *WorldChange) UnmarshalJSON(data []byte) error {
	var in changeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.ID = in.ID
	c.SessionID = in.SessionID
	c.ParticipantID = in.ParticipantID
	c.Applied = in.Applied
	c.CreatedAt = in.CreatedAt
	if len(in.Payload) == 0 {
		c.Payload = nil
		return nil
	}
	switch in.Kind {
	case ChangeEntityUpdate:
		var p EntityUpdate
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return err
		}
		c.Payload = p
	case ChangeRelationship:
		var p RelationshipChange
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return err
		}
		c.Payload = p
	case ChangeFactAssertion:
		var p FactAssertion
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return err
		}
		c.Payload = p
	case ChangeEntityMove:
		var p EntityMove
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return err
		}
		c.Payload = p
	default:
		c.Payload = nil
	}
	return nil
}
