package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: Night Raid
settings:
  turn_time_limit: 2m
  max_participants: 4
participants:
  - user_id: user-dm
    name: Dana
  - user_id: user-alice
    name: Alice
    role: player
world:
  entities:
    - ref: goblin
      type: creature
      name: Goblin
      status: alive
      tags: [hostile]
    - ref: cave
      type: place
      name: Mossy Cave
  relationships:
    - subject: goblin
      object: cave
      type: located_in
      strength: 0.8
  facts:
    - entity: goblin
      key: hp
      value: 7
      confidence: 0.9
turns:
  - participant: user-alice
    description: I attack the goblin
    changes:
      - kind: entity_update
        entity: goblin
        status: dead
  - participant: user-dm
    skip: true
`

func TestParse(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		scn, err := Parse(strings.NewReader(validYAML), "yaml")
		require.NoError(t, err)

		assert.Equal(t, "Night Raid", scn.Name)
		assert.Equal(t, 2*time.Minute, scn.Settings.TurnTimeLimit)
		assert.Equal(t, 4, scn.Settings.MaxParticipants)
		require.Len(t, scn.Participants, 2)
		assert.Equal(t, "user-dm", scn.Participants[0].UserID)
		require.Len(t, scn.World.Entities, 2)
		assert.Equal(t, []string{"hostile"}, scn.World.Entities[0].Tags)
		require.Len(t, scn.Turns, 2)
		require.Len(t, scn.Turns[0].Changes, 1)
		assert.Equal(t, "entity_update", scn.Turns[0].Changes[0].Kind)
		assert.True(t, scn.Turns[1].Skip)
	})

	t.Run("json", func(t *testing.T) {
		input := `{
			"name": "Ambush",
			"participants": [{"user_id": "user-dm"}],
			"world": {"entities": [{"ref": "orc", "type": "creature", "name": "Orc"}]}
		}`
		scn, err := Parse(strings.NewReader(input), "json")
		require.NoError(t, err)
		assert.Equal(t, "Ambush", scn.Name)
		require.Len(t, scn.World.Entities, 1)
		assert.Equal(t, "orc", scn.World.Entities[0].Ref)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := Parse(strings.NewReader(validYAML), "toml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported scenario format")
	})
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			"missing name",
			`participants: [{user_id: u1}]`,
			"name is required",
		},
		{
			"no participants",
			`name: x`,
			"at least one participant",
		},
		{
			"duplicate user id",
			`{name: x, participants: [{user_id: u1}, {user_id: u1}]}`,
			"duplicate participant user_id",
		},
		{
			"entity without ref",
			`{name: x, participants: [{user_id: u1}], world: {entities: [{type: person, name: Bob}]}}`,
			"ref is required",
		},
		{
			"duplicate entity ref",
			`{name: x, participants: [{user_id: u1}], world: {entities: [{ref: a, type: person, name: Bob}, {ref: a, type: person, name: Ann}]}}`,
			"duplicate entity ref",
		},
		{
			"relationship with unknown ref",
			`{name: x, participants: [{user_id: u1}], world: {relationships: [{subject: a, object: b, type: friend_of}]}}`,
			"unknown entity ref",
		},
		{
			"fact with unknown ref",
			`{name: x, participants: [{user_id: u1}], world: {facts: [{entity: a, key: hp, value: 1}]}}`,
			"unknown entity ref",
		},
		{
			"turn with unknown participant",
			`{name: x, participants: [{user_id: u1}], turns: [{participant: u2}]}`,
			"unknown participant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("yaml extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "raid.yaml")
		require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

		scn, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Night Raid", scn.Name)
	})

	t.Run("json extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "raid.json")
		input := `{"name": "Ambush", "participants": [{"user_id": "u1"}]}`
		require.NoError(t, os.WriteFile(path, []byte(input), 0644))

		scn, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Ambush", scn.Name)
	})

	t.Run("no extension defaults to yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "raid")
		require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

		_, err := LoadFile(path)
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening scenario file")
	})
}
