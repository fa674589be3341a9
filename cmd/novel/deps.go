package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/domain/services"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
	embedder "github.com/ersonp/lore-novel/internal/infrastructure/embedder/openai"
	llm "github.com/ersonp/lore-novel/internal/infrastructure/llm/openai"
	"github.com/ersonp/lore-novel/internal/infrastructure/logging"
	"github.com/ersonp/lore-novel/internal/infrastructure/metrics"
	"github.com/ersonp/lore-novel/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/lore-novel/internal/infrastructure/tokenizer"
	"github.com/ersonp/lore-novel/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config     *config.Config
	Logger     *zap.Logger
	Context    *handlers.ContextHandler
	Exposures  *handlers.ExposureHandler
	Identities *handlers.IdentityHandler
	Import     *handlers.ImportHandler
}

// internalDeps holds all dependencies including low-level components.
// Used internally by helper functions.
type internalDeps struct {
	Deps
	db         *sqlite.Repository
	recorder   *metrics.Recorder
	identities *services.IdentityService
	characters *services.CharacterService
	memories   *services.MemoryService
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withProject resolves the --project flag before calling fn.
func withProject(ctx context.Context, fn func(*internalDeps, *entities.Project) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		project, err := handlers.ResolveProject(ctx, d.db, globalProject)
		if err != nil {
			return err
		}
		return fn(d, project)
	})
}

// withInternalDeps provides access to all dependencies including low-level components.
// Used by commands that need direct repository or service access.
func withInternalDeps(fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if !config.Exists(cwd) {
		return fmt.Errorf("no workspace in %s (run 'novel init' first)", cwd)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	db, err := sqlite.NewRepository(config.SQLiteConfig{Path: cfg.SQLitePath(cwd)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer db.Close()

	// Ensure schema exists
	if err := db.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	var (
		index ports.MemoryIndex
		emb   ports.Embedder
	)
	if cfg.Memory.Enabled {
		repo, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer repo.Close()

		e, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, emb = repo, e
	}

	var analyzer ports.ChapterAnalyzer
	if client, err := llm.NewClient(cfg.LLM); err != nil {
		logger.Debug("chapter analysis disabled", zap.Error(err))
	} else {
		analyzer = client
	}

	var tokens ports.TokenCounter
	if counter, err := tokenizer.NewCounter(cfg.LLM.Model); err != nil {
		logger.Warn("tokenizer unavailable, estimating token counts", zap.Error(err))
		tokens = tokenizer.NewEstimator()
	} else {
		tokens = counter
	}

	recorder := metrics.NewRecorder()

	memories := services.NewMemoryService(db, index, emb, logger)
	foreshadows := services.NewForeshadowService(db, logger)
	identityService := services.NewIdentityService(db, logger)
	characterService := services.NewCharacterService(db, logger)
	exposureService := services.NewExposureService(db, recorder, logger)
	builder := services.NewContextBuilder(db, memories, foreshadows, tokens, recorder, logger)
	importService := services.NewImportService(db, memories, logger)

	deps := &internalDeps{
		Deps: Deps{
			Config:     cfg,
			Logger:     logger,
			Context:    handlers.NewContextHandler(builder),
			Exposures:  handlers.NewExposureHandler(db, exposureService, memories, analyzer, logger),
			Identities: handlers.NewIdentityHandler(db, identityService, characterService),
			Import:     handlers.NewImportHandler(importService),
		},
		db:         db,
		recorder:   recorder,
		identities: identityService,
		characters: characterService,
		memories:   memories,
	}

	return fn(deps)
}

// withIdentityService provides the identity service for CRUD commands.
func withIdentityService(fn func(*services.IdentityService) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(d.identities)
	})
}
