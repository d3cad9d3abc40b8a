// Package scenario provides loading and replay of scripted sessions.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session: participants, an initial world and a
// sequence of turns to replay.
type Scenario struct {
	Name         string        `yaml:"name" json:"name"`
	Settings     Settings      `yaml:"settings,omitempty" json:"settings,omitempty"`
	Participants []Participant `yaml:"participants" json:"participants"`
	World        WorldSetup    `yaml:"world,omitempty" json:"world,omitempty"`
	Turns        []Turn        `yaml:"turns,omitempty" json:"turns,omitempty"`
}

// Settings carries the session policy knobs for the replay.
type Settings struct {
	TurnTimeLimit   time.Duration `yaml:"turn_time_limit,omitempty" json:"turn_time_limit,omitempty"`
	MaxParticipants int           `yaml:"max_participants,omitempty" json:"max_participants,omitempty"`
}

// Participant is one scripted participant. The first participant hosts the
// session and defaults to the dm role.
type Participant struct {
	UserID string `yaml:"user_id" json:"user_id"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Role   string `yaml:"role,omitempty" json:"role,omitempty"`
}

// WorldSetup seeds the world graph before the first turn. Entities are
// referenced from later steps by their ref key.
type WorldSetup struct {
	Entities      []Entity       `yaml:"entities,omitempty" json:"entities,omitempty"`
	Relationships []Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Facts         []Fact         `yaml:"facts,omitempty" json:"facts,omitempty"`
}

// Entity is one seeded world entity.
type Entity struct {
	Ref        string   `yaml:"ref" json:"ref"`
	Type       string   `yaml:"type" json:"type"`
	Name       string   `yaml:"name" json:"name"`
	Status     string   `yaml:"status,omitempty" json:"status,omitempty"`
	Confidence *float64 `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Location   string   `yaml:"location,omitempty" json:"location,omitempty"`
}

// Relationship is one seeded relationship between two entity refs.
type Relationship struct {
	Subject  string  `yaml:"subject" json:"subject"`
	Object   string  `yaml:"object" json:"object"`
	Type     string  `yaml:"type" json:"type"`
	Strength float64 `yaml:"strength,omitempty" json:"strength,omitempty"`
	Mutual   bool    `yaml:"mutual,omitempty" json:"mutual,omitempty"`
}

// Fact is one seeded property assertion on an entity ref.
type Fact struct {
	Entity     string  `yaml:"entity" json:"entity"`
	Key        string  `yaml:"key" json:"key"`
	Value      any     `yaml:"value" json:"value"`
	Confidence float64 `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// Turn is one scripted turn: the participant acts, optionally carrying world
// changes, then completes or skips.
type Turn struct {
	Participant string   `yaml:"participant" json:"participant"` // user_id
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Skip        bool     `yaml:"skip,omitempty" json:"skip,omitempty"`
	Changes     []Change `yaml:"changes,omitempty" json:"changes,omitempty"`
}

// Change is one scripted world edit. Kind selects which fields apply:
// entity_update, relationship_change, fact_assertion or entity_move.
type Change struct {
	Kind       string   `yaml:"kind" json:"kind"`
	Entity     string   `yaml:"entity,omitempty" json:"entity,omitempty"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Status     string   `yaml:"status,omitempty" json:"status,omitempty"`
	Confidence *float64 `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	AddTags    []string `yaml:"add_tags,omitempty" json:"add_tags,omitempty"`
	Subject    string   `yaml:"subject,omitempty" json:"subject,omitempty"`
	Object     string   `yaml:"object,omitempty" json:"object,omitempty"`
	Type       string   `yaml:"type,omitempty" json:"type,omitempty"`
	Strength   float64  `yaml:"strength,omitempty" json:"strength,omitempty"`
	Mutual     bool     `yaml:"mutual,omitempty" json:"mutual,omitempty"`
	Invalidate bool     `yaml:"invalidate,omitempty" json:"invalidate,omitempty"`
	Key        string   `yaml:"key,omitempty" json:"key,omitempty"`
	Value      any      `yaml:"value,omitempty" json:"value,omitempty"`
	Location   string   `yaml:"location,omitempty" json:"location,omitempty"`
}

// Parse reads a scenario in the given format ("yaml" or "json").
func Parse(r io.Reader, format string) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var scn Scenario
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &scn); err != nil {
			return nil, fmt.Errorf("parsing scenario YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &scn); err != nil {
			return nil, fmt.Errorf("parsing scenario JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format: %s", format)
	}

	if err := scn.validate(); err != nil {
		return nil, err
	}
	return &scn, nil
}

// LoadFile reads a scenario from disk, picking the format from the extension.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario file: %w", err)
	}
	defer f.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "yaml"
	}
	return Parse(f, format)
}

// validate checks the scenario for structural problems before replay.
func (s *Scenario) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Participants) == 0 {
		return fmt.Errorf("scenario needs at least one participant")
	}

	users := make(map[string]bool, len(s.Participants))
	for i, p := range s.Participants {
		if strings.TrimSpace(p.UserID) == "" {
			return fmt.Errorf("participant %d: user_id is required", i)
		}
		if users[p.UserID] {
			return fmt.Errorf("duplicate participant user_id: %s", p.UserID)
		}
		users[p.UserID] = true
	}

	refs := make(map[string]bool, len(s.World.Entities))
	for i, e := range s.World.Entities {
		if strings.TrimSpace(e.Ref) == "" {
			return fmt.Errorf("world entity %d: ref is required", i)
		}
		if refs[e.Ref] {
			return fmt.Errorf("duplicate entity ref: %s", e.Ref)
		}
		refs[e.Ref] = true
	}
	for i, r := range s.World.Relationships {
		if !refs[r.Subject] || !refs[r.Object] {
			return fmt.Errorf("world relationship %d: unknown entity ref", i)
		}
	}
	for i, f := range s.World.Facts {
		if !refs[f.Entity] {
			return fmt.Errorf("world fact %d: unknown entity ref %s", i, f.Entity)
		}
	}

	for i, turn := range s.Turns {
		if !users[turn.Participant] {
			return fmt.Errorf("turn %d: unknown participant %s", i, turn.Participant)
		}
	}
	return nil
}
