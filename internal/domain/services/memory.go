package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// MemoryService records story memories and searches them semantically.
// Without an index and embedder it still records memories, but search
// returns nothing.
type MemoryService struct {
	db       ports.StoryDB
	index    ports.MemoryIndex
	embedder ports.Embedder
	logger   *zap.Logger
}

var _ ports.MemorySearcher = (*MemoryService)(nil)

// NewMemoryService creates a new MemoryService. index and embedder may be
// nil.
func NewMemoryService(
	db ports.StoryDB,
	index ports.MemoryIndex,
	embedder ports.Embedder,
	logger *zap.Logger,
) *MemoryService {
	return &MemoryService{
		db:       db,
		index:    index,
		embedder: embedder,
		logger:   namedLogger(logger, "memory"),
	}
}

// Searchable reports whether semantic search is available.
func (s *MemoryService) Searchable() bool {
	return s.index != nil && s.embedder != nil
}

// Record persists a memory and indexes it when an index is configured.
func (s *MemoryService) Record(ctx context.Context, memory *entities.StoryMemory) error {
	if err := s.db.SaveMemory(ctx, memory); err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	s.Index(ctx, *memory)
	return nil
}

// Index embeds memories and upserts them into the index. Failures are
// logged and swallowed; the relational store stays the source of truth.
func (s *MemoryService) Index(ctx context.Context, memories ...entities.StoryMemory) {
	if !s.Searchable() || len(memories) == 0 {
		return
	}
	if err := s.embed(ctx, memories); err != nil {
		s.logger.Warn("failed to embed memories", zap.Int("count", len(memories)), zap.Error(err))
		return
	}
	if err := s.index.SaveMemories(ctx, memories); err != nil {
		s.logger.Warn("failed to index memories", zap.Int("count", len(memories)), zap.Error(err))
	}
}

// embed fills the Embedding field of every memory.
func (s *MemoryService) embed(ctx context.Context, memories []entities.StoryMemory) error {
	texts := make([]string, len(memories))
	for i := range memories {
		texts[i] = memories[i].Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding memories: %w", err)
	}
	if len(embeddings) != len(memories) {
		return fmt.Errorf("embedder returned %d vectors for %d memories", len(embeddings), len(memories))
	}
	for i := range memories {
		memories[i].Embedding = embeddings[i]
	}
	return nil
}

// Reindex rebuilds the index entries of a project from the relational
// store and returns how many memories were indexed.
func (s *MemoryService) Reindex(ctx context.Context, projectID string) (int, error) {
	if !s.Searchable() {
		return 0, fmt.Errorf("memory index is not configured")
	}

	memories, err := s.db.ListMemories(ctx, projectID, "")
	if err != nil {
		return 0, fmt.Errorf("listing memories: %w", err)
	}
	if err := s.index.DeleteProjectMemories(ctx, projectID); err != nil {
		return 0, fmt.Errorf("clearing indexed memories: %w", err)
	}
	if len(memories) == 0 {
		return 0, nil
	}

	batch := make([]entities.StoryMemory, len(memories))
	for i, m := range memories {
		batch[i] = *m
	}
	if err := s.embed(ctx, batch); err != nil {
		return 0, err
	}
	if err := s.index.SaveMemories(ctx, batch); err != nil {
		return 0, fmt.Errorf("indexing memories: %w", err)
	}
	return len(batch), nil
}

// SearchMemories returns the memories of a project most similar to query
// with an importance of at least minImportance.
func (s *MemoryService) SearchMemories(
	ctx context.Context,
	projectID string,
	query string,
	limit int,
	minImportance float64,
) ([]entities.StoryMemory, error) {
	if !s.Searchable() || query == "" || limit <= 0 {
		return nil, nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	memories, err := s.index.SearchMemories(ctx, embedding, ports.MemoryFilter{
		ProjectID:     projectID,
		MinImportance: minImportance,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	return memories, nil
}

// FindUnresolvedForeshadows returns planted foreshadows planted before the
// given chapter that have not been resolved.
func (s *MemoryService) FindUnresolvedForeshadows(ctx context.Context, projectID string, chapter int) ([]*entities.Foreshadow, error) {
	planted, err := s.db.ListForeshadows(ctx, projectID, entities.ForeshadowPlanted)
	if err != nil {
		return nil, fmt.Errorf("listing foreshadows: %w", err)
	}

	result := make([]*entities.Foreshadow, 0, len(planted))
	for _, f := range planted {
		if f.PlantChapter < chapter {
			result = append(result, f)
		}
	}
	return result, nil
}
