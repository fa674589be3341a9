// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
	embedder "github.com/ersonp/lore-novel/internal/infrastructure/embedder/openai"
)

// StoreOpener opens the story store described by a config.
type StoreOpener func(cfg *config.Config, basePath string) (ports.StoryDB, error)

// CollectionOpener connects to the vector collection described by a config.
// The returned function releases the connection.
type CollectionOpener func(cfg *config.Config) (ports.CollectionManager, func() error, error)

// InitHandler handles workspace initialization.
type InitHandler struct {
	openStore       StoreOpener
	openCollections CollectionOpener
}

// NewInitHandler creates a new init handler. openCollections may be nil,
// in which case no vector collection is created.
func NewInitHandler(openStore StoreOpener, openCollections CollectionOpener) *InitHandler {
	return &InitHandler{
		openStore:       openStore,
		openCollections: openCollections,
	}
}

// InitOptions controls initialization.
type InitOptions struct {
	// WithMemory enables semantic memory search and creates the vector
	// collection.
	WithMemory bool
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath        string
	DatabasePath      string
	CollectionName    string
	CollectionCreated bool
}

// Handle writes the default config, creates the database schema and, when
// memory search is requested, the vector collection.
func (h *InitHandler) Handle(ctx context.Context, basePath string, opts InitOptions) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("lore already initialized in %s", basePath)
	}

	collection := config.GenerateCollectionName(filepath.Base(basePath))
	if err := config.WriteDefault(basePath, collection); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.WithMemory {
		if err := config.SetMemoryEnabled(basePath, true); err != nil {
			return nil, fmt.Errorf("enabling memory search: %w", err)
		}
		cfg.Memory.Enabled = true
	}

	store, err := h.openStore(cfg, basePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	result := &InitResult{
		ConfigPath:     config.ConfigFilePath(basePath),
		DatabasePath:   cfg.SQLitePath(basePath),
		CollectionName: cfg.Qdrant.Collection,
	}

	if !opts.WithMemory || h.openCollections == nil {
		return result, nil
	}

	collections, release, err := h.openCollections(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}
	defer release()

	if err := collections.EnsureCollection(ctx, embedder.VectorSize); err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	result.CollectionCreated = true

	return result, nil
}
