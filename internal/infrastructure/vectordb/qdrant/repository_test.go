package qdrant

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
)

func TestPointID(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, pointID(id))

	hashed := pointID("memory-42")
	_, err := uuid.Parse(hashed)
	require.NoError(t, err)
	assert.Equal(t, hashed, pointID("memory-42"))
	assert.NotEqual(t, hashed, pointID("memory-43"))

	_, err = uuid.Parse(pointID(""))
	assert.NoError(t, err)
}

func TestMemoryFilter(t *testing.T) {
	assert.Nil(t, memoryFilter(ports.MemoryFilter{}))

	filter := memoryFilter(ports.MemoryFilter{
		ProjectID:     "p1",
		MinImportance: 0.7,
		MemoryTypes:   []entities.MemoryType{entities.MemoryPlotPoint, entities.MemoryForeshadow},
	})
	require.NotNil(t, filter)
	require.Len(t, filter.Must, 3)

	project := filter.Must[0].GetField()
	assert.Equal(t, keyProjectID, project.Key)
	assert.Equal(t, "p1", project.Match.GetKeyword())

	importance := filter.Must[1].GetField()
	assert.Equal(t, keyImportance, importance.Key)
	require.NotNil(t, importance.Range.Gte)
	assert.InDelta(t, 0.7, *importance.Range.Gte, 1e-9)

	types := filter.Must[2].GetField()
	assert.Equal(t, keyMemoryType, types.Key)
	assert.Equal(t, []string{"plot_point", "foreshadow"}, types.Match.GetKeywords().GetStrings())
}

func TestMemoryPayload(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	memory := entities.StoryMemory{
		ID:              "m1",
		ProjectID:       "p1",
		ChapterID:       "c7",
		MemoryType:      entities.MemoryIdentityExposure,
		Title:           "Viper exposed",
		Content:         "Wang finds the codebook",
		StoryTimeline:   7,
		ImportanceScore: 0.9,
		Metadata:        map[string]any{"identity": "Viper"},
		CreatedAt:       created,
	}

	payload, err := memoryPayload(&memory)
	require.NoError(t, err)
	assert.Equal(t, "p1", payload[keyProjectID].GetStringValue())
	assert.Equal(t, int64(7), payload[keyStoryTimeline].GetIntegerValue())
	assert.InDelta(t, 0.9, payload[keyImportance].GetDoubleValue(), 1e-9)
	assert.JSONEq(t, `{"identity":"Viper"}`, payload[keyMetadata].GetStringValue())

	back := payloadToMemory(payload)
	assert.Equal(t, memory, back)
}

func TestPayloadToMemory_Tolerant(t *testing.T) {
	payload := map[string]*pb.Value{
		keyMemoryID:  stringValue("m1"),
		keyMetadata:  stringValue("{broken"),
		keyCreatedAt: stringValue("yesterday"),
	}

	memory := payloadToMemory(payload)
	assert.Equal(t, "m1", memory.ID)
	assert.Nil(t, memory.Metadata)
	assert.True(t, memory.CreatedAt.IsZero())
}

// TestRepository_Live runs against a local Qdrant when INTEGRATION_TEST is set.
func TestRepository_Live(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("set INTEGRATION_TEST to run against a local Qdrant")
	}

	repo, err := NewRepository(config.QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "novel_test_" + uuid.New().String()[:8],
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.DeleteCollection(t.Context())
		_ = repo.Close()
	})

	ctx := t.Context()
	require.NoError(t, repo.EnsureCollection(ctx, 3))
	require.NoError(t, repo.EnsureCollection(ctx, 3))

	require.NoError(t, repo.SaveMemories(ctx, []entities.StoryMemory{
		{ID: "a", ProjectID: "p1", MemoryType: entities.MemoryPlotPoint, Content: "a", ImportanceScore: 0.9, Embedding: []float32{1, 0, 0}},
		{ID: "b", ProjectID: "p1", MemoryType: entities.MemoryPlotPoint, Content: "b", ImportanceScore: 0.2, Embedding: []float32{1, 0, 0}},
		{ID: "c", ProjectID: "p2", MemoryType: entities.MemoryPlotPoint, Content: "c", ImportanceScore: 0.9, Embedding: []float32{1, 0, 0}},
	}))

	found, err := repo.SearchMemories(ctx, []float32{1, 0, 0}, ports.MemoryFilter{ProjectID: "p1", MinImportance: 0.7}, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].ID)

	require.NoError(t, repo.DeleteProjectMemories(ctx, "p1"))
	found, err = repo.SearchMemories(ctx, []float32{1, 0, 0}, ports.MemoryFilter{ProjectID: "p1"}, 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRepository_SaveMemories_RequiresEmbedding(t *testing.T) {
	repo := &Repository{collection: "unused"}
	err := repo.SaveMemories(t.Context(), []entities.StoryMemory{{ID: "m1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no embedding")

	assert.NoError(t, repo.SaveMemories(t.Context(), nil))
}
