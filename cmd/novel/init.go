package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
	"github.com/ersonp/lore-novel/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/lore-novel/internal/infrastructure/vectordb/qdrant"
)

func newInitCmd() *cobra.Command {
	var withMemory bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new novel workspace",
		Long: "Creates a .lore directory with default configuration and the story database. " +
			"With --with-memory, semantic memory search is enabled and the Qdrant collection is created.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, withMemory)
		},
	}

	cmd.Flags().BoolVar(&withMemory, "with-memory", false, "Enable semantic memory search (requires Qdrant and an embedding API key)")

	return cmd
}

func runInit(cmd *cobra.Command, withMemory bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	handler := handlers.NewInitHandler(openStore, openCollections)
	result, err := handler.Handle(cmd.Context(), cwd, handlers.InitOptions{WithMemory: withMemory})
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Printf("Created database: %s\n", result.DatabasePath)
	if result.CollectionCreated {
		fmt.Printf("Created Qdrant collection: %s\n", result.CollectionName)
	}
	fmt.Println("Workspace initialized. Next: novel import <bundle>")

	return nil
}

func openStore(cfg *config.Config, basePath string) (ports.StoryDB, error) {
	return sqlite.NewRepository(config.SQLiteConfig{Path: cfg.SQLitePath(basePath)})
}

func openCollections(cfg *config.Config) (ports.CollectionManager, func() error, error) {
	repo, err := qdrant.NewRepository(cfg.Qdrant)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}
