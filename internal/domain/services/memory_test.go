package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/mocks"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

func TestMemoryService_RecordAndSearch(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	index := &mocks.MemoryIndex{}
	embedder := &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2}}
	svc := NewMemoryService(db, index, embedder, nil)
	require.True(t, svc.Searchable())

	for _, m := range []*entities.StoryMemory{
		{ProjectID: p.ID, MemoryType: entities.MemoryPlotPoint, Content: "the codebook changes hands", StoryTimeline: 4, ImportanceScore: 0.8},
		{ProjectID: p.ID, MemoryType: entities.MemoryPlotPoint, Content: "a quiet dinner", StoryTimeline: 5, ImportanceScore: 0.3},
	} {
		require.NoError(t, svc.Record(t.Context(), m))
	}

	stored, err := db.ListMemories(t.Context(), p.ID, "")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	require.Len(t, index.Memories, 2)
	assert.Equal(t, []float32{0.1, 0.2}, index.Memories[0].Embedding)

	found, err := svc.SearchMemories(t.Context(), p.ID, "codebook", 3, 0.7)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "the codebook changes hands", found[0].Content)
	assert.Equal(t, ports.MemoryFilter{ProjectID: p.ID, MinImportance: 0.7}, index.LastFilter)
	assert.Equal(t, []string{"codebook"}, embedder.LastTexts)
}

func TestMemoryService_NotSearchable(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	svc := NewMemoryService(db, nil, nil, nil)
	assert.False(t, svc.Searchable())

	require.NoError(t, svc.Record(t.Context(), &entities.StoryMemory{
		ProjectID: p.ID, MemoryType: entities.MemoryPlotPoint, Content: "still stored",
	}))
	stored, err := db.ListMemories(t.Context(), p.ID, "")
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	found, err := svc.SearchMemories(t.Context(), p.ID, "stored", 3, 0)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = svc.Reindex(t.Context(), p.ID)
	assert.Error(t, err)
}

func TestMemoryService_SearchGuards(t *testing.T) {
	db := setupStore(t)
	index := &mocks.MemoryIndex{}
	svc := NewMemoryService(db, index, &mocks.Embedder{}, nil)

	found, err := svc.SearchMemories(t.Context(), "p", "", 3, 0)
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = svc.SearchMemories(t.Context(), "p", "query", 0, 0)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, 0, index.SearchCallCount)
}

func TestMemoryService_SearchErrors(t *testing.T) {
	db := setupStore(t)

	svc := NewMemoryService(db, &mocks.MemoryIndex{}, &mocks.Embedder{Err: errors.New("rate limited")}, nil)
	_, err := svc.SearchMemories(t.Context(), "p", "query", 3, 0)
	assert.ErrorContains(t, err, "embedding query")

	svc = NewMemoryService(db, &mocks.MemoryIndex{Err: errors.New("unavailable")}, &mocks.Embedder{}, nil)
	_, err = svc.SearchMemories(t.Context(), "p", "query", 3, 0)
	assert.ErrorContains(t, err, "searching memories")
}

func TestMemoryService_IndexFailureIsSwallowed(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	core, logs := observer.New(zap.WarnLevel)
	index := &mocks.MemoryIndex{SaveErr: errors.New("unavailable")}
	svc := NewMemoryService(db, index, &mocks.Embedder{}, zap.New(core))

	require.NoError(t, svc.Record(t.Context(), &entities.StoryMemory{
		ProjectID: p.ID, MemoryType: entities.MemoryPlotPoint, Content: "kept",
	}))
	assert.Equal(t, 1, logs.FilterMessage("failed to index memories").Len())

	svc = NewMemoryService(db, index, &mocks.Embedder{Err: errors.New("rate limited")}, zap.New(core))
	require.NoError(t, svc.Record(t.Context(), &entities.StoryMemory{
		ProjectID: p.ID, MemoryType: entities.MemoryPlotPoint, Content: "kept too",
	}))
	assert.Equal(t, 1, logs.FilterMessage("failed to embed memories").Len())
	assert.Equal(t, 1, index.SaveCallCount)
}

func TestMemoryService_Reindex(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	index := &mocks.MemoryIndex{Memories: []entities.StoryMemory{
		{ID: "stale", ProjectID: p.ID, Content: "deleted long ago"},
		{ID: "other", ProjectID: "another-project", Content: "not ours"},
	}}
	svc := NewMemoryService(db, index, &mocks.Embedder{EmbeddingResult: []float32{1}}, nil)

	for _, content := range []string{"first", "second"} {
		require.NoError(t, db.SaveMemory(t.Context(), &entities.StoryMemory{
			ProjectID: p.ID, MemoryType: entities.MemoryPlotPoint, Content: content,
		}))
	}

	count, err := svc.Reindex(t.Context(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, index.DeleteCallCount)

	contents := make([]string, 0, len(index.Memories))
	for _, m := range index.Memories {
		contents = append(contents, m.Content)
	}
	assert.ElementsMatch(t, []string{"not ours", "first", "second"}, contents)
}

func TestMemoryService_FindUnresolvedForeshadows(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	svc := NewMemoryService(db, nil, nil, nil)

	for _, f := range []*entities.Foreshadow{
		{ProjectID: p.ID, Title: "Codebook", Content: "c", PlantChapter: 2, Status: entities.ForeshadowPlanted},
		{ProjectID: p.ID, Title: "Letter", Content: "l", PlantChapter: 9, Status: entities.ForeshadowPlanted},
		{ProjectID: p.ID, Title: "Ring", Content: "r", PlantChapter: 3, Status: entities.ForeshadowResolved},
		{ProjectID: p.ID, Title: "Photo", Content: "p", PlantChapter: 4, Status: entities.ForeshadowPending},
	} {
		require.NoError(t, db.SaveForeshadow(t.Context(), f))
	}

	unresolved, err := svc.FindUnresolvedForeshadows(t.Context(), p.ID, 9)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "Codebook", unresolved[0].Title)
}
