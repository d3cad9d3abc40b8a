package services

import (
	"context"
	"strings"

	"github.com/ersonp/session-core/internal/domain/entities"
)

// turnKeywords maps turn types to the substrings that imply them. Checked in
// the order of turnKeywordOrder; the first type with a match wins.
var turnKeywords = map[entities.TurnType][]string{
	entities.TurnTypeCombat:      {"attack", "strike", "fight", "shoot", "stab", "cast", "defend", "parry"},
	entities.TurnTypeMovement:    {"move", "go to", "walk", "run", "travel", "climb", "enter", "flee"},
	entities.TurnTypeDialogue:    {"say", "tell", "ask", "speak", "talk", "whisper", "shout"},
	entities.TurnTypeRest:        {"rest", "sleep", "camp", "recover", "meditate"},
	entities.TurnTypeExploration: {"search", "explore", "investigate", "examine", "look around", "scout"},
	entities.TurnTypeSocial:      {"persuade", "intimidate", "charm", "negotiate", "trade", "bargain"},
}

var turnKeywordOrder = []entities.TurnType{
	entities.TurnTypeCombat,
	entities.TurnTypeMovement,
	entities.TurnTypeDialogue,
	entities.TurnTypeRest,
	entities.TurnTypeExploration,
	entities.TurnTypeSocial,
}

// KeywordClassifier infers turn types by substring search over the action
// description. It is the default TurnClassifier; the inference is a heuristic
// and the state machine never depends on its output.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the default keyword-based classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify returns the first turn type whose keywords appear in the
// description, or the default action type.
func (c *KeywordClassifier) Classify(_ context.Context, description string) (entities.TurnType, error) {
	text := strings.ToLower(description)
	for _, turnType := range turnKeywordOrder {
		for _, keyword := range turnKeywords[turnType] {
			if strings.Contains(text, keyword) {
				return turnType, nil
			}
		}
	}
	return entities.TurnTypeAction, nil
}
