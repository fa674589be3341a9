package mocks

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// MemorySearcher is a mock implementation of ports.MemorySearcher.
type MemorySearcher struct {
	Memories      []entities.StoryMemory
	Foreshadows   []*entities.Foreshadow
	SearchErr     error
	ForeshadowErr error

	// Call tracking
	SearchCallCount   int
	LastQuery         string
	LastLimit         int
	LastMinImportance float64
}

// SearchMemories returns up to limit configured memories.
func (m *MemorySearcher) SearchMemories(
	ctx context.Context,
	projectID, query string,
	limit int,
	minImportance float64,
) ([]entities.StoryMemory, error) {
	m.SearchCallCount++
	m.LastQuery = query
	m.LastLimit = limit
	m.LastMinImportance = minImportance
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if len(m.Memories) > limit {
		return m.Memories[:limit], nil
	}
	return m.Memories, nil
}

// FindUnresolvedForeshadows returns the configured foreshadows.
func (m *MemorySearcher) FindUnresolvedForeshadows(ctx context.Context, projectID string, chapter int) ([]*entities.Foreshadow, error) {
	if m.ForeshadowErr != nil {
		return nil, m.ForeshadowErr
	}
	return m.Foreshadows, nil
}

// ForeshadowProvider is a mock implementation of ports.ForeshadowProvider.
type ForeshadowProvider struct {
	Text string
	Err  error

	CallCount   int
	LastOptions ports.ForeshadowContextOptions
}

// BuildChapterContext returns the configured text or error.
func (m *ForeshadowProvider) BuildChapterContext(
	ctx context.Context,
	projectID string,
	chapter int,
	opts ports.ForeshadowContextOptions,
) (string, error) {
	m.CallCount++
	m.LastOptions = opts
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

// TokenCounter counts one token per four runes.
type TokenCounter struct{}

// Count estimates the token count of text.
func (TokenCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Metrics records every observation it receives.
type Metrics struct {
	mu        sync.Mutex
	Contexts  []entities.ContextStats
	Exposures []entities.ExposureResult
}

// ObserveContextBuild records the stats.
func (m *Metrics) ObserveContextBuild(stats entities.ContextStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Contexts = append(m.Contexts, stats)
}

// ObserveExposure records the result.
func (m *Metrics) ObserveExposure(result entities.ExposureResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Exposures = append(m.Exposures, result)
}
