// Package openai provides a TurnClassifier implementation using OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/infrastructure/config"
)

const classifyPrompt = `You are a turn classifier for tabletop role-playing sessions. Classify the described action into exactly one category.

Categories:
- combat: attacks, spells cast in anger, defending, fighting
- movement: walking, running, traveling, entering or leaving places
- dialogue: talking, asking, persuading, speech
- rest: resting, sleeping, camping, recovering
- exploration: searching, investigating, examining, scouting
- social: trading, performing, socializing, gathering
- action: anything that fits none of the above

Respond with ONLY the category word, nothing else.`

// validTypes is the closed set of classifications the model may return.
var validTypes = map[string]entities.TurnType{
	"combat":      entities.TurnTypeCombat,
	"movement":    entities.TurnTypeMovement,
	"dialogue":    entities.TurnTypeDialogue,
	"rest":        entities.TurnTypeRest,
	"exploration": entities.TurnTypeExploration,
	"social":      entities.TurnTypeSocial,
	"action":      entities.TurnTypeAction,
}

// Classifier implements the TurnClassifier interface using OpenAI.
type Classifier struct {
	client *openai.Client
	model  string
}

// NewClassifier creates a new OpenAI turn classifier.
func NewClassifier(cfg config.ClassifierConfig) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Classifier{
		client: client,
		model:  model,
	}, nil
}

// Classify determines the turn type of an action description.
func (c *Classifier) Classify(ctx context.Context, description string) (entities.TurnType, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: classifyPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: description,
			},
		},
		Temperature: 0,
		MaxTokens:   4,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	turnType, ok := validTypes[answer]
	if !ok {
		return "", fmt.Errorf("unexpected classification %q", answer)
	}
	return turnType, nil
}
