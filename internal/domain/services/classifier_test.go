package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/session-core/internal/domain/entities"
)

func TestKeywordClassifier_Classify(t *testing.T) {
	classifier := NewKeywordClassifier()
	ctx := context.Background()

	tests := []struct {
		name        string
		description string
		expected    entities.TurnType
	}{
		{"combat", "I attack the goblin with my sword", entities.TurnTypeCombat},
		{"combat cast", "I cast fireball at the horde", entities.TurnTypeCombat},
		{"movement", "We travel north along the river", entities.TurnTypeMovement},
		{"dialogue", "I ask the innkeeper about the missing caravan", entities.TurnTypeDialogue},
		{"rest", "The party makes camp for the night", entities.TurnTypeRest},
		{"exploration", "I search the desk for hidden compartments", entities.TurnTypeExploration},
		{"social", "I try to persuade the guard to let us pass", entities.TurnTypeSocial},
		{"default", "something unusual happens", entities.TurnTypeAction},
		{"case insensitive", "I ATTACK!", entities.TurnTypeCombat},
		{"combat beats later categories", "I attack while shouting a warning", entities.TurnTypeCombat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turnType, err := classifier.Classify(ctx, tt.description)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, turnType)
		})
	}
}
