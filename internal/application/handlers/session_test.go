package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/mocks"
	"github.com/ersonp/session-core/internal/domain/services"
)

func setupHandlerTest() (*SessionHandler, *TurnHandler, *WorldHandler, *mocks.Scheduler) {
	clock := mocks.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	scheduler := mocks.NewScheduler()
	svc := services.NewSessionService(
		services.WithClock(clock.Now),
		services.WithScheduler(scheduler),
	)
	return NewSessionHandler(svc), NewTurnHandler(svc), NewWorldHandler(svc), scheduler
}

func TestSessionHandler_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		sessions, _, _, _ := setupHandlerTest()

		created := sessions.HandleCreate(ctx, services.CreateSessionInput{
			Name: "Night Raid", HostID: "user-dm",
		})
		require.True(t, created.Success)
		require.NotNil(t, created.Data)

		got := sessions.HandleGet(created.Data.ID)
		assert.True(t, got.Success)
		assert.Equal(t, created.Data.ID, got.Data.ID)

		list := sessions.HandleList()
		assert.True(t, list.Success)
		assert.Len(t, list.Data, 1)
	})

	t.Run("failures carry taxonomy codes", func(t *testing.T) {
		sessions, _, _, _ := setupHandlerTest()

		missing := sessions.HandleGet("missing")
		assert.False(t, missing.Success)
		assert.Equal(t, CodeNotFound, missing.Code)
		assert.NotEmpty(t, missing.Error)

		invalid := sessions.HandleCreate(ctx, services.CreateSessionInput{Name: "", HostID: "u"})
		assert.False(t, invalid.Success)
		assert.Equal(t, CodeValidation, invalid.Code)

		created := sessions.HandleCreate(ctx, services.CreateSessionInput{Name: "Raid", HostID: "user-dm"})
		require.True(t, created.Success)
		ended := sessions.HandleEnd(ctx, created.Data.ID)
		require.True(t, ended.Success)

		rejoin := sessions.HandleJoin(ctx, created.Data.ID, services.JoinSessionInput{UserID: "user-x"})
		assert.False(t, rejoin.Success)
		assert.Equal(t, CodeStateConflict, rejoin.Code)
	})
}

func TestTurnHandler_Flow(t *testing.T) {
	ctx := context.Background()
	sessions, turns, worlds, _ := setupHandlerTest()

	created := sessions.HandleCreate(ctx, services.CreateSessionInput{Name: "Raid", HostID: "user-dm"})
	require.True(t, created.Success)
	sessionID := created.Data.ID

	joined := sessions.HandleJoin(ctx, sessionID, services.JoinSessionInput{UserID: "user-alice", Name: "Alice"})
	require.True(t, joined.Success)
	alice := joined.Data

	entity := worlds.HandleCreateEntity(ctx, sessionID, services.CreateEntityInput{
		Type: entities.EntityCreature, Name: "Goblin", Status: entities.StatusAlive,
	})
	require.True(t, entity.Success)

	started := turns.HandleStart(ctx, sessionID)
	require.True(t, started.Success)
	assert.Equal(t, alice.ID, started.Data.ParticipantID)

	submitted := turns.HandleSubmit(ctx, sessionID, alice.ID, entities.TurnAction{
		Description: "I attack the goblin",
		Changes: []entities.WorldChange{{
			Payload: entities.EntityUpdate{EntityID: entity.Data.ID, Status: entities.StatusDead},
		}},
	})
	require.True(t, submitted.Success)
	assert.True(t, submitted.Data.Applied)
	assert.Equal(t, entities.TurnTypeCombat, submitted.Data.Turn.Type)

	completed := turns.HandleComplete(ctx, sessionID, alice.ID)
	require.True(t, completed.Success)
	assert.Equal(t, entities.TurnCompleted, completed.Data.Status)

	// Starting before anyone acts twice in a row is fine; acting out of
	// turn is a state conflict.
	started = turns.HandleStart(ctx, sessionID)
	require.True(t, started.Success)
	outOfTurn := turns.HandleSubmit(ctx, sessionID, alice.ID, entities.TurnAction{Description: "again"})
	assert.False(t, outOfTurn.Success)
	assert.Equal(t, CodeStateConflict, outOfTurn.Code)

	queried := worlds.HandleQueryEntities(sessionID, services.EntityQuery{Type: entities.EntityCreature})
	require.True(t, queried.Success)
	require.Equal(t, 1, queried.Data.Total)
	assert.Equal(t, entities.StatusDead, queried.Data.Entities[0].Status)
}
