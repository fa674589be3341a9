package ports

import (
	"context"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// MemorySearcher retrieves story memories relevant to a chapter.
type MemorySearcher interface {
	// SearchMemories finds memories semantically related to the query with
	// an importance of at least minImportance.
	SearchMemories(ctx context.Context, projectID, query string, limit int, minImportance float64) ([]entities.StoryMemory, error)

	// FindUnresolvedForeshadows lists planted, unresolved foreshadows planted
	// before the given chapter.
	FindUnresolvedForeshadows(ctx context.Context, projectID string, chapter int) ([]*entities.Foreshadow, error)
}

// ForeshadowContextOptions selects which foreshadows a reminder covers.
type ForeshadowContextOptions struct {
	IncludePending bool
	IncludeOverdue bool
	Lookahead      int
}

// ForeshadowProvider renders foreshadow reminders for a chapter.
type ForeshadowProvider interface {
	BuildChapterContext(ctx context.Context, projectID string, chapter int, opts ForeshadowContextOptions) (string, error)
}

// TokenCounter estimates the number of model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// Metrics receives observations from the core services.
type Metrics interface {
	ObserveContextBuild(stats entities.ContextStats)
	ObserveExposure(result entities.ExposureResult)
}
