package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/mocks"
)

func setupSyncTest() (*SyncManager, *WorldGraph, *TurnCoordinator, *mocks.Clock) {
	clock := mocks.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	graph := NewWorldGraph("session-1", clock.Now)
	detector := NewConflictDetector(graph, nil, clock.Now)
	manager := NewSyncManager("session-1", graph, detector, clock.Now)
	manager.Initialize([]string{"a", "b"})
	coord := NewTurnCoordinator("session-1", 5*time.Minute, clock.Now, nil, nil)
	coord.InitializeOrder(turnTestParticipants(clock.Current))
	return manager, graph, coord, clock
}

func TestSyncManager_Initialize(t *testing.T) {
	manager, _, _, _ := setupSyncTest()

	assert.Equal(t, 1.0, manager.Progress())
	assert.True(t, manager.IsSynchronized())
	assert.Equal(t, 0, manager.PendingChangeCount())

	require.NotNil(t, manager.Participant("a"))
	assert.True(t, manager.Participant("a").IsCurrent)
	assert.Nil(t, manager.Participant("missing"))
}

func TestSyncManager_AddRemoveParticipant(t *testing.T) {
	manager, _, _, _ := setupSyncTest()

	// Late joiners start stale.
	manager.AddParticipant("c")
	require.NotNil(t, manager.Participant("c"))
	assert.False(t, manager.Participant("c").IsCurrent)
	assert.InDelta(t, 2.0/3.0, manager.Progress(), 1e-9)

	manager.RemoveParticipant("c")
	assert.Nil(t, manager.Participant("c"))
	assert.Equal(t, 1.0, manager.Progress())
}

func TestSyncManager_ProcessWorldChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("clean batch applies and stays in the window", func(t *testing.T) {
		manager, graph, _, _ := setupSyncTest()
		alice, err := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})
		require.NoError(t, err)

		applied, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 1)
		require.NoError(t, err)
		assert.True(t, applied)

		assert.Equal(t, entities.StatusAlive, alice.Status)
		assert.Equal(t, 1, manager.PendingChangeCount())

		sync := manager.Participant("b")
		require.Len(t, sync.PendingChanges, 1)
		assert.True(t, sync.PendingChanges[0].Applied)
		assert.True(t, sync.IsCurrent)
		assert.Equal(t, 1, sync.LastSyncedTurn)

		// The other participant goes stale until they pull.
		assert.False(t, manager.Participant("a").IsCurrent)
		assert.InDelta(t, 0.5, manager.Progress(), 1e-9)
	})

	t.Run("exactly one of two colliding batches is admitted", func(t *testing.T) {
		manager, graph, _, _ := setupSyncTest()
		alice, err := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})
		require.NoError(t, err)

		applied, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 1)
		require.NoError(t, err)
		require.True(t, applied)

		// a edits the same entity while b's change is still in the window.
		applied, err = manager.ProcessWorldChanges(ctx, "a", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusDead},
		}, 1)
		require.NoError(t, err)
		assert.False(t, applied)

		// The held batch did not touch the graph.
		assert.Equal(t, entities.StatusAlive, alice.Status)

		open := graph.OpenConflicts()
		require.Len(t, open, 1)
		assert.Equal(t, entities.ConflictEntity, open[0].Type)
		assert.ElementsMatch(t, []string{"a", "b"}, open[0].AffectedParticipants)

		held := manager.Participant("a")
		require.Len(t, held.PendingChanges, 1)
		assert.False(t, held.PendingChanges[0].Applied)
		assert.False(t, held.IsCurrent)
		assert.Contains(t, held.ConflictIDs, open[0].ID)
		assert.False(t, manager.Participant("b").IsCurrent)

		assert.Equal(t, 2, manager.PendingChangeCount())
	})

	t.Run("different targets do not collide", func(t *testing.T) {
		manager, graph, _, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})
		bob, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Bob"})

		applied, err := manager.ProcessWorldChanges(ctx, "a", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 1)
		require.NoError(t, err)
		require.True(t, applied)

		applied, err = manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: bob.ID, Status: entities.StatusDead},
		}, 1)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Empty(t, graph.OpenConflicts())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		manager, _, _, _ := setupSyncTest()
		applied, err := manager.ProcessWorldChanges(ctx, "a", nil, 1)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, 0, manager.PendingChangeCount())
	})

	t.Run("unknown participant", func(t *testing.T) {
		manager, _, _, _ := setupSyncTest()
		_, err := manager.ProcessWorldChanges(ctx, "ghost", []entities.ChangePayload{
			entities.EntityMove{EntityID: "e", Location: "void"},
		}, 1)
		require.ErrorIs(t, err, ErrParticipantNotFound)
	})

	t.Run("fact assertions run contradiction detection", func(t *testing.T) {
		manager, graph, _, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

		_, err := graph.UpdateFact(UpdateFactInput{SubjectID: alice.ID, Key: "location", Value: "tavern"})
		require.NoError(t, err)

		applied, err := manager.ProcessWorldChanges(ctx, "a", []entities.ChangePayload{
			entities.FactAssertion{EntityID: alice.ID, Key: "location", Value: "forest", Confidence: 0.6},
		}, 1)
		require.NoError(t, err)
		assert.True(t, applied)

		open := graph.OpenConflicts()
		require.Len(t, open, 1)
		assert.Equal(t, entities.ConflictProperty, open[0].Type)
	})
}

func TestSyncManager_FinalizePending(t *testing.T) {
	ctx := context.Background()

	t.Run("releases applied changes from the window", func(t *testing.T) {
		manager, graph, _, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

		_, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 1)
		require.NoError(t, err)
		require.Equal(t, 1, manager.PendingChangeCount())

		done, err := manager.FinalizePending(ctx, "b", 1)
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, 0, manager.PendingChangeCount())
		assert.Empty(t, manager.Participant("b").PendingChanges)
	})

	t.Run("held batch retries once collisions drain", func(t *testing.T) {
		manager, graph, _, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

		_, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 1)
		require.NoError(t, err)

		applied, err := manager.ProcessWorldChanges(ctx, "a", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusDead},
		}, 1)
		require.NoError(t, err)
		require.False(t, applied)

		// b's change still occupies the window, so a's retry stays held.
		done, err := manager.FinalizePending(ctx, "a", 2)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, entities.StatusAlive, alice.Status)

		// b finalizes, draining the collision.
		done, err = manager.FinalizePending(ctx, "b", 2)
		require.NoError(t, err)
		require.True(t, done)

		done, err = manager.FinalizePending(ctx, "a", 3)
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, entities.StatusDead, alice.Status)
		assert.Equal(t, 0, manager.PendingChangeCount())
		assert.True(t, manager.Participant("a").IsCurrent)
	})

	t.Run("empty queue succeeds", func(t *testing.T) {
		manager, _, _, _ := setupSyncTest()
		done, err := manager.FinalizePending(ctx, "a", 1)
		require.NoError(t, err)
		assert.True(t, done)
	})
}

func TestSyncManager_RequestSynchronization(t *testing.T) {
	ctx := context.Background()

	t.Run("stale participant gets a full delta", func(t *testing.T) {
		manager, graph, coord, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

		_, err := coord.StartNextTurn()
		require.NoError(t, err)
		_, err = coord.CompleteTurn("a")
		require.NoError(t, err)

		_, err = manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, coord.TurnCount())
		require.NoError(t, err)
		require.False(t, manager.Participant("a").IsCurrent)

		delta, err := manager.RequestSynchronization("a", 0, false, coord)
		require.NoError(t, err)
		assert.True(t, delta.Full)
		require.NotNil(t, delta.Snapshot)
		assert.Equal(t, 1, delta.Snapshot.Metrics.EntityCount)
		assert.Len(t, delta.MissedTurns, 1)
		assert.Equal(t, 1, delta.SyncedTurn)

		sync := manager.Participant("a")
		assert.True(t, sync.IsCurrent)
		assert.Equal(t, 1, sync.LastSyncedTurn)
		require.NotNil(t, sync.LastSyncAt)
		assert.Equal(t, 1.0, manager.Progress())
	})

	t.Run("current participant gets partial delta", func(t *testing.T) {
		manager, _, coord, _ := setupSyncTest()

		for _, owner := range []string{"a", "b"} {
			_, err := coord.StartNextTurn()
			require.NoError(t, err)
			_, err = coord.CompleteTurn(owner)
			require.NoError(t, err)
		}

		delta, err := manager.RequestSynchronization("a", 1, false, coord)
		require.NoError(t, err)
		assert.False(t, delta.Full)
		assert.Nil(t, delta.Snapshot)
		require.Len(t, delta.MissedTurns, 1)
		assert.Equal(t, 2, delta.MissedTurns[0].TurnNumber)
	})

	t.Run("pull clears the participant's window entries", func(t *testing.T) {
		manager, graph, coord, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

		_, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 0)
		require.NoError(t, err)
		require.Equal(t, 1, manager.PendingChangeCount())

		_, err = manager.RequestSynchronization("b", 0, true, coord)
		require.NoError(t, err)
		assert.Equal(t, 0, manager.PendingChangeCount())
		assert.Empty(t, manager.Participant("b").PendingChanges)
	})

	t.Run("full sync delivers conflicts addressed to the participant", func(t *testing.T) {
		manager, graph, coord, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

		_, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 0)
		require.NoError(t, err)
		_, err = manager.ProcessWorldChanges(ctx, "a", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusDead},
		}, 0)
		require.NoError(t, err)

		delta, err := manager.RequestSynchronization("a", 0, true, coord)
		require.NoError(t, err)
		require.Len(t, delta.Conflicts, 1)
		assert.Contains(t, delta.Conflicts[0].AffectedParticipants, "a")
	})

	t.Run("unknown participant", func(t *testing.T) {
		manager, _, coord, _ := setupSyncTest()
		_, err := manager.RequestSynchronization("ghost", 0, false, coord)
		require.ErrorIs(t, err, ErrParticipantNotFound)
	})
}

func TestSyncManager_DisconnectReconnect(t *testing.T) {
	manager, _, _, _ := setupSyncTest()

	require.NoError(t, manager.HandleDisconnect("a"))
	sync := manager.Participant("a")
	assert.False(t, sync.IsCurrent)
	// Cursor reset forces a full pull on reconnect.
	assert.Equal(t, 0, sync.LastSyncedTurn)

	require.NoError(t, manager.HandleConnect("a"))
	assert.False(t, manager.Participant("a").IsCurrent)

	assert.ErrorIs(t, manager.HandleDisconnect("ghost"), ErrParticipantNotFound)
	assert.ErrorIs(t, manager.HandleConnect("ghost"), ErrParticipantNotFound)
}

func TestSyncManager_ForceResynchronization(t *testing.T) {
	ctx := context.Background()
	manager, graph, _, _ := setupSyncTest()
	alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

	_, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
		entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
	}, 1)
	require.NoError(t, err)
	_, err = manager.ProcessWorldChanges(ctx, "a", []entities.ChangePayload{
		entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusDead},
	}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, graph.OpenConflicts())

	manager.ForceResynchronization()

	assert.Equal(t, 0, manager.PendingChangeCount())
	assert.Empty(t, graph.OpenConflicts())
	for _, id := range []string{"a", "b"} {
		sync := manager.Participant(id)
		assert.False(t, sync.IsCurrent)
		assert.Empty(t, sync.PendingChanges)
		assert.Empty(t, sync.ConflictIDs)
	}

	// Everyone must re-pull before the session counts as synchronized.
	health := manager.HealthStatus()
	assert.Equal(t, 0.0, health.Progress)
	assert.False(t, health.IsSynchronized)
}

func TestSyncManager_HealthStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy session", func(t *testing.T) {
		manager, _, _, _ := setupSyncTest()
		health := manager.HealthStatus()
		assert.False(t, health.Degraded)
		assert.True(t, health.IsSynchronized)
		assert.Empty(t, health.Issues)
	})

	t.Run("stale majority degrades", func(t *testing.T) {
		manager, _, _, _ := setupSyncTest()
		require.NoError(t, manager.HandleDisconnect("a"))

		health := manager.HealthStatus()
		assert.True(t, health.Degraded)
		assert.InDelta(t, 0.5, health.Progress, 1e-9)
		require.NotEmpty(t, health.Issues)
		assert.Contains(t, health.Issues[0], "progress")
	})

	t.Run("open conflicts degrade", func(t *testing.T) {
		manager, graph, _, _ := setupSyncTest()
		alice, _ := graph.CreateEntity(CreateEntityInput{Type: entities.EntityPerson, Name: "Alice"})

		_, err := manager.ProcessWorldChanges(ctx, "b", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusAlive},
		}, 1)
		require.NoError(t, err)
		_, err = manager.ProcessWorldChanges(ctx, "a", []entities.ChangePayload{
			entities.EntityUpdate{EntityID: alice.ID, Status: entities.StatusDead},
		}, 1)
		require.NoError(t, err)

		health := manager.HealthStatus()
		assert.True(t, health.Degraded)
		assert.Equal(t, 1, health.OpenConflicts)
		assert.Equal(t, 2, health.PendingChanges)
	})
}
