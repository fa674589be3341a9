package ports

import (
	"context"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// MemoryFilter narrows a memory search. Zero values match everything.
type MemoryFilter struct {
	ProjectID     string
	MinImportance float64
	MemoryTypes   []entities.MemoryType
}

// MemoryIndex stores story memories as vectors for semantic retrieval.
type MemoryIndex interface {
	// SaveMemories upserts memories. Each memory must carry its embedding.
	SaveMemories(ctx context.Context, memories []entities.StoryMemory) error

	// SearchMemories returns the memories most similar to the embedding.
	SearchMemories(ctx context.Context, embedding []float32, filter MemoryFilter, limit int) ([]entities.StoryMemory, error)

	// DeleteProjectMemories removes every memory of a project.
	DeleteProjectMemories(ctx context.Context, projectID string) error
}
