package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Alice Johnson", "alice johnson"},
		{"trims whitespace", "  The Rusty Anchor  ", "the rusty anchor"},
		{"already normalized", "goblin", "goblin"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.5))
	assert.Equal(t, 1.0, ClampConfidence(1.5))
	assert.Equal(t, 0.7, ClampConfidence(0.7))
}

func TestClampStrength(t *testing.T) {
	assert.Equal(t, -1.0, ClampStrength(-2))
	assert.Equal(t, 1.0, ClampStrength(3))
	assert.Equal(t, 0.25, ClampStrength(0.25))
}

func TestWorldEntity_ValidAt(t *testing.T) {
	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := from.Add(time.Hour)

	t.Run("open ended", func(t *testing.T) {
		e := WorldEntity{ValidFrom: from}
		assert.False(t, e.ValidAt(from.Add(-time.Second)))
		assert.True(t, e.ValidAt(from))
		assert.True(t, e.ValidAt(from.Add(24*time.Hour)))
	})

	t.Run("closed window", func(t *testing.T) {
		e := WorldEntity{ValidFrom: from, ValidUntil: &until}
		assert.True(t, e.ValidAt(from.Add(30*time.Minute)))
		assert.True(t, e.ValidAt(until))
		assert.False(t, e.ValidAt(until.Add(time.Second)))
	})
}

func TestWorldEntity_HasTag(t *testing.T) {
	e := WorldEntity{Tags: []string{"npc", "merchant"}}
	assert.True(t, e.HasTag("npc"))
	assert.False(t, e.HasTag("villain"))
}

func TestRelationPermitted(t *testing.T) {
	assert.True(t, RelationPermitted(EntityPerson, RelationFriendOf))
	assert.True(t, RelationPermitted(EntityPlace, RelationLocatedIn))
	assert.False(t, RelationPermitted(EntityPlace, RelationFriendOf))
	assert.False(t, RelationPermitted(EntityConcept, RelationLocatedIn))
}

func TestRelationsConflict(t *testing.T) {
	assert.True(t, RelationsConflict(RelationEnemyOf, RelationAlliedWith))
	assert.True(t, RelationsConflict(RelationAlliedWith, RelationEnemyOf))
	assert.True(t, RelationsConflict(RelationParentOf, RelationChildOf))
	assert.False(t, RelationsConflict(RelationEnemyOf, RelationLocatedIn))
	assert.False(t, RelationsConflict(RelationOwns, RelationOwns))
}

func TestValidEntityType(t *testing.T) {
	assert.True(t, ValidEntityType(EntityPerson))
	assert.True(t, ValidEntityType(EntityConcept))
	assert.False(t, ValidEntityType(EntityType("spaceship")))
}
