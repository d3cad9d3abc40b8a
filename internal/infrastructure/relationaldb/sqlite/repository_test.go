package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/session-core/internal/domain/entities"
	"github.com/ersonp/session-core/internal/domain/ports"
	"github.com/ersonp/session-core/internal/infrastructure/config"
)

func setupRepoTest(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(config.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "archive.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestNewRepository_RequiresPath(t *testing.T) {
	_, err := NewRepository(config.SQLiteConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestRepository_Sessions(t *testing.T) {
	ctx := context.Background()
	repo := setupRepoTest(t)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &ports.SessionRecord{
		ID:           "sess-1",
		Name:         "Night Raid",
		Status:       "active",
		Participants: 3,
		CreatedAt:    created,
	}
	require.NoError(t, repo.SaveSession(ctx, rec))

	t.Run("find", func(t *testing.T) {
		found, err := repo.FindSession(ctx, "sess-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Night Raid", found.Name)
		assert.Equal(t, 3, found.Participants)
		assert.WithinDuration(t, created, found.CreatedAt, time.Second)
		assert.Nil(t, found.EndedAt)
	})

	t.Run("missing is nil", func(t *testing.T) {
		found, err := repo.FindSession(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("upsert on end", func(t *testing.T) {
		ended := created.Add(2 * time.Hour)
		rec.Status = "ended"
		rec.TurnCount = 12
		rec.EndedAt = &ended
		require.NoError(t, repo.SaveSession(ctx, rec))

		found, err := repo.FindSession(ctx, "sess-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "ended", found.Status)
		assert.Equal(t, 12, found.TurnCount)
		require.NotNil(t, found.EndedAt)
		assert.WithinDuration(t, ended, *found.EndedAt, time.Second)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, &ports.SessionRecord{
			ID: "sess-2", Name: "Later", Status: "active",
			CreatedAt: created.Add(time.Hour),
		}))

		records, err := repo.ListSessions(ctx, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "sess-2", records[0].ID)
		assert.Equal(t, "sess-1", records[1].ID)

		limited, err := repo.ListSessions(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestRepository_Turns(t *testing.T) {
	ctx := context.Background()
	repo := setupRepoTest(t)

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(3 * time.Minute)
	turn := &entities.TurnState{
		ID:            "turn-1",
		SessionID:     "sess-1",
		TurnNumber:    1,
		ParticipantID: "part-a",
		Type:          entities.TurnTypeCombat,
		Status:        entities.TurnCompleted,
		Action: &entities.TurnAction{
			Description: "I attack the goblin",
			SubmittedAt: started.Add(time.Minute),
		},
		StartedAt: started,
		EndsAt:    started.Add(5 * time.Minute),
		EndedAt:   &ended,
	}
	require.NoError(t, repo.SaveTurn(ctx, turn))
	require.NoError(t, repo.SaveTurn(ctx, &entities.TurnState{
		ID: "turn-2", SessionID: "sess-1", TurnNumber: 2, ParticipantID: "part-b",
		Status: entities.TurnSkipped, StartedAt: ended, EndsAt: ended.Add(5 * time.Minute),
	}))

	turns, err := repo.FindTurns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)

	assert.Equal(t, "turn-1", turns[0].ID)
	assert.Equal(t, entities.TurnTypeCombat, turns[0].Type)
	require.NotNil(t, turns[0].Action)
	assert.Equal(t, "I attack the goblin", turns[0].Action.Description)
	require.NotNil(t, turns[0].EndedAt)
	assert.WithinDuration(t, ended, *turns[0].EndedAt, time.Second)

	assert.Equal(t, entities.TurnSkipped, turns[1].Status)
	assert.Nil(t, turns[1].Action)

	t.Run("replay updates in place", func(t *testing.T) {
		turn.Status = entities.TurnTimeout
		require.NoError(t, repo.SaveTurn(ctx, turn))

		turns, err := repo.FindTurns(ctx, "sess-1")
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, entities.TurnTimeout, turns[0].Status)
	})

	t.Run("other session is empty", func(t *testing.T) {
		turns, err := repo.FindTurns(ctx, "sess-2")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})
}

func TestRepository_Conflicts(t *testing.T) {
	ctx := context.Background()
	repo := setupRepoTest(t)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conflict := &entities.WorldConflict{
		ID:                   "conf-1",
		SessionID:            "sess-1",
		Type:                 entities.ConflictEntity,
		Severity:             entities.SeverityMedium,
		FirstRefID:           "ent-1",
		SecondRefID:          "ent-2",
		Description:          "possible duplicate",
		AffectedParticipants: []string{"part-a", "part-b"},
		Status:               entities.ConflictOpen,
		CreatedAt:            created,
	}
	require.NoError(t, repo.SaveConflict(ctx, conflict))

	conflicts, err := repo.FindConflicts(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, entities.ConflictOpen, conflicts[0].Status)
	assert.Equal(t, []string{"part-a", "part-b"}, conflicts[0].AffectedParticipants)

	t.Run("resolution updates in place", func(t *testing.T) {
		resolved := created.Add(time.Minute)
		conflict.Status = entities.ConflictResolved
		conflict.Resolution = entities.ResolutionManual
		conflict.ResolvedAt = &resolved
		require.NoError(t, repo.SaveConflict(ctx, conflict))

		conflicts, err := repo.FindConflicts(ctx, "sess-1")
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, entities.ConflictResolved, conflicts[0].Status)
		assert.Equal(t, entities.ResolutionManual, conflicts[0].Resolution)
		require.NotNil(t, conflicts[0].ResolvedAt)
	})
}

func TestRepository_Snapshots(t *testing.T) {
	ctx := context.Background()
	repo := setupRepoTest(t)

	t.Run("none archived", func(t *testing.T) {
		snap, err := repo.FindLatestSnapshot(ctx, "sess-1")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	taken := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSnapshot(ctx, &entities.WorldSnapshot{
		SessionID: "sess-1",
		TakenAt:   taken,
		Metrics:   entities.WorldMetrics{EntityCount: 1},
	}))
	require.NoError(t, repo.SaveSnapshot(ctx, &entities.WorldSnapshot{
		SessionID: "sess-1",
		TakenAt:   taken.Add(time.Minute),
		Metrics:   entities.WorldMetrics{EntityCount: 2},
	}))

	snap, err := repo.FindLatestSnapshot(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Metrics.EntityCount)
}

func TestRepository_AuditLog(t *testing.T) {
	ctx := context.Background()
	repo := setupRepoTest(t)

	require.NoError(t, repo.LogAction(ctx, "sess-1", "session_created", "sess-1", map[string]any{"host": "user-dm"}))
	require.NoError(t, repo.LogAction(ctx, "sess-1", "turn_completed", "turn-1", nil))

	logEntries, err := repo.FindAuditLog(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, logEntries, 2)

	// Newest first.
	assert.Equal(t, "turn_completed", logEntries[0].Action)
	assert.Nil(t, logEntries[0].Details)
	assert.Equal(t, "session_created", logEntries[1].Action)
	assert.Equal(t, "user-dm", logEntries[1].Details["host"])
	assert.False(t, logEntries[1].CreatedAt.IsZero())

	limited, err := repo.FindAuditLog(ctx, "sess-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "turn_completed", limited[0].Action)
}
