package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/session-core/internal/infrastructure/config"
	embedder "github.com/ersonp/session-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/session-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/session-core/internal/infrastructure/vectordb/qdrant"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new session workspace",
		Long:  "Creates a .session directory with default configuration and sets up the archive database.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if config.Exists(cwd) {
		return fmt.Errorf("session workspace already initialized in %s", cwd)
	}

	if err := config.WriteDefault(cwd); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("Created %s\n", config.ConfigFilePath(cwd))

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	archive, err := sqlite.NewRepository(config.SQLiteConfig{Path: sqlitePath(cwd, cfg)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer archive.Close()

	if err := archive.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}
	fmt.Printf("Created archive database: %s\n", archive.Path())

	if cfg.Embedder.APIKey != "" {
		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, err := qdrant.NewRepository(cfg.Qdrant, emb)
		if err != nil {
			return fmt.Errorf("connecting to qdrant: %w", err)
		}
		defer index.Close()

		if err := index.EnsureCollection(ctx, embedder.VectorSize); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
		fmt.Printf("Created Qdrant collection: %s\n", cfg.Qdrant.Collection)
	} else {
		fmt.Println("No embedder API key set; duplicate detection will use the lexical scan.")
	}

	fmt.Println("Session workspace initialized successfully!")
	return nil
}
