package mocks

import (
	"context"
	"sort"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// MemoryIndex is an in-memory mock implementation of ports.MemoryIndex.
// Search ignores the embedding and returns matching memories by importance.
type MemoryIndex struct {
	Memories []entities.StoryMemory
	Err      error
	SaveErr  error

	// Call tracking
	SaveCallCount   int
	SearchCallCount int
	DeleteCallCount int
	LastFilter      ports.MemoryFilter
	LastLimit       int
}

// SaveMemories upserts memories by ID.
func (m *MemoryIndex) SaveMemories(ctx context.Context, memories []entities.StoryMemory) error {
	m.SaveCallCount++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.Err != nil {
		return m.Err
	}
	for _, mem := range memories {
		replaced := false
		for i := range m.Memories {
			if m.Memories[i].ID == mem.ID {
				m.Memories[i] = mem
				replaced = true
				break
			}
		}
		if !replaced {
			m.Memories = append(m.Memories, mem)
		}
	}
	return nil
}

// SearchMemories returns the stored memories matching the filter, most
// important first.
func (m *MemoryIndex) SearchMemories(
	ctx context.Context,
	embedding []float32,
	filter ports.MemoryFilter,
	limit int,
) ([]entities.StoryMemory, error) {
	m.SearchCallCount++
	m.LastFilter = filter
	m.LastLimit = limit
	if m.Err != nil {
		return nil, m.Err
	}

	var result []entities.StoryMemory
	for _, mem := range m.Memories {
		if filter.ProjectID != "" && mem.ProjectID != filter.ProjectID {
			continue
		}
		if mem.ImportanceScore < filter.MinImportance {
			continue
		}
		if len(filter.MemoryTypes) > 0 && !containsType(filter.MemoryTypes, mem.MemoryType) {
			continue
		}
		result = append(result, mem)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ImportanceScore > result[j].ImportanceScore
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteProjectMemories removes the memories of a project.
func (m *MemoryIndex) DeleteProjectMemories(ctx context.Context, projectID string) error {
	m.DeleteCallCount++
	if m.Err != nil {
		return m.Err
	}
	kept := m.Memories[:0]
	for _, mem := range m.Memories {
		if mem.ProjectID != projectID {
			kept = append(kept, mem)
		}
	}
	m.Memories = kept
	return nil
}

func containsType(types []entities.MemoryType, t entities.MemoryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
