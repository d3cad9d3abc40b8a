package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ersonp/session-core/internal/application/handlers"
	"github.com/ersonp/session-core/internal/domain/services"
	classifier "github.com/ersonp/session-core/internal/infrastructure/classifier/openai"
	"github.com/ersonp/session-core/internal/infrastructure/config"
	embedder "github.com/ersonp/session-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/session-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/session-core/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers and the facade are exposed; repositories stay internal.
type Deps struct {
	Config          *config.Config
	Sessions        *services.SessionService
	SessionHandler  *handlers.SessionHandler
	TurnHandler     *handlers.TurnHandler
	WorldHandler    *handlers.WorldHandler
	SyncHandler     *handlers.SyncHandler
	ConflictHandler *handlers.ConflictHandler
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	archive *sqlite.Repository
	index   *qdrant.Repository
}

// withDeps loads config and builds dependencies, then calls the provided
// function. It handles cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level
// components.
func withInternalDeps(fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	archive, err := sqlite.NewRepository(config.SQLiteConfig{Path: sqlitePath(cwd, cfg)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer archive.Close()

	ctx := context.Background()
	if err := archive.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	opts := []services.SessionServiceOption{
		services.WithArchive(archive),
		services.WithSessionDefaults(services.SessionSettings{
			TurnTimeLimit:   cfg.Session.TurnTimeLimit,
			MaxParticipants: cfg.Session.MaxParticipants,
		}),
	}

	// The similarity index needs an embedder; without an API key duplicate
	// detection falls back to the lexical graph scan.
	var index *qdrant.Repository
	if cfg.Embedder.APIKey != "" {
		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, err = qdrant.NewRepository(cfg.Qdrant, emb)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer index.Close()
		opts = append(opts, services.WithSimilarityIndex(index))
	}

	if cfg.Classifier.Provider == "openai" {
		cls, err := classifier.NewClassifier(cfg.Classifier)
		if err != nil {
			return fmt.Errorf("creating classifier: %w", err)
		}
		opts = append(opts, services.WithClassifier(cls))
	}

	sessions := services.NewSessionService(opts...)

	deps := &internalDeps{
		Deps: Deps{
			Config:          cfg,
			Sessions:        sessions,
			SessionHandler:  handlers.NewSessionHandler(sessions),
			TurnHandler:     handlers.NewTurnHandler(sessions),
			WorldHandler:    handlers.NewWorldHandler(sessions),
			SyncHandler:     handlers.NewSyncHandler(sessions),
			ConflictHandler: handlers.NewConflictHandler(sessions),
		},
		archive: archive,
		index:   index,
	}

	return fn(deps)
}

// withArchive provides direct archive access for read-only history commands.
func withArchive(fn func(*sqlite.Repository) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(d.archive)
	})
}

// sqlitePath resolves the archive path, preferring an explicit config value.
func sqlitePath(cwd string, cfg *config.Config) string {
	if cfg.SQLite.Path != "" {
		return cfg.SQLite.Path
	}
	return config.SQLitePath(cwd)
}
