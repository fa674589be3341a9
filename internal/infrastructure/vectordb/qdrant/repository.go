// Package qdrant provides a MemoryIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
)

// Payload keys.
const (
	keyMemoryID      = "memory_id"
	keyProjectID     = "project_id"
	keyChapterID     = "chapter_id"
	keyMemoryType    = "memory_type"
	keyTitle         = "title"
	keyContent       = "content"
	keyStoryTimeline = "story_timeline"
	keyImportance    = "importance"
	keyMetadata      = "metadata"
	keyCreatedAt     = "created_at"
)

// Repository implements ports.MemoryIndex and ports.CollectionManager
// using Qdrant.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

var (
	_ ports.MemoryIndex       = (*Repository)(nil)
	_ ports.CollectionManager = (*Repository)(nil)
)

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// apiKeyInterceptor attaches the Qdrant api-key header to every call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist, along with
// the payload indexes used by memory searches.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	indexes := []struct {
		field string
		kind  pb.FieldType
	}{
		{keyProjectID, pb.FieldType_FieldTypeKeyword},
		{keyMemoryType, pb.FieldType_FieldTypeKeyword},
		{keyImportance, pb.FieldType_FieldTypeFloat},
	}
	for _, idx := range indexes {
		_, err := r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: r.collection,
			FieldName:      idx.field,
			FieldType:      pb.PtrOf(idx.kind),
		})
		if err != nil {
			return fmt.Errorf("creating %s index: %w", idx.field, err)
		}
	}

	return nil
}

// DeleteCollection removes the collection and all its data.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// SaveMemories upserts memories with their embeddings.
func (r *Repository) SaveMemories(ctx context.Context, memories []entities.StoryMemory) error {
	if len(memories) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(memories))
	for i := range memories {
		m := &memories[i]
		if len(m.Embedding) == 0 {
			return fmt.Errorf("memory %q has no embedding", m.ID)
		}

		payload, err := memoryPayload(m)
		if err != nil {
			return err
		}

		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: pointID(m.ID),
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: m.Embedding,
					},
				},
			},
			Payload: payload,
		})
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// SearchMemories performs a filtered semantic search.
func (r *Repository) SearchMemories(
	ctx context.Context,
	embedding []float32,
	filter ports.MemoryFilter,
	limit int,
) ([]entities.StoryMemory, error) {
	if limit <= 0 {
		return nil, nil
	}

	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		Filter:         memoryFilter(filter),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	memories := make([]entities.StoryMemory, 0, len(resp.Result))
	for _, point := range resp.Result {
		memory := payloadToMemory(point.Payload)
		memory.Score = point.Score
		memories = append(memories, memory)
	}
	return memories, nil
}

// DeleteProjectMemories removes every memory of a project.
func (r *Repository) DeleteProjectMemories(ctx context.Context, projectID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: memoryFilter(ports.MemoryFilter{ProjectID: projectID}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting project points: %w", err)
	}

	return nil
}

// pointID maps a memory ID to a Qdrant point ID. Qdrant only accepts
// UUIDs and integers, so other IDs are hashed into a stable UUID.
func pointID(memoryID string) string {
	if memoryID == "" {
		return uuid.New().String()
	}
	if id, err := uuid.Parse(memoryID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(memoryID)).String()
}

// memoryFilter translates a MemoryFilter into Qdrant conditions.
func memoryFilter(filter ports.MemoryFilter) *pb.Filter {
	var must []*pb.Condition

	if filter.ProjectID != "" {
		must = append(must, keywordCondition(keyProjectID, filter.ProjectID))
	}

	if filter.MinImportance > 0 {
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   keyImportance,
					Range: &pb.Range{Gte: pb.PtrOf(filter.MinImportance)},
				},
			},
		})
	}

	if len(filter.MemoryTypes) > 0 {
		types := make([]string, len(filter.MemoryTypes))
		for i, t := range filter.MemoryTypes {
			types[i] = string(t)
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: keyMemoryType,
					Match: &pb.Match{
						MatchValue: &pb.Match_Keywords{
							Keywords: &pb.RepeatedStrings{Strings: types},
						},
					},
				},
			},
		})
	}

	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{
						Keyword: value,
					},
				},
			},
		},
	}
}

// memoryPayload converts a memory into a point payload. Metadata is kept
// as a JSON string.
func memoryPayload(m *entities.StoryMemory) (map[string]*pb.Value, error) {
	meta := ""
	if len(m.Metadata) > 0 {
		data, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata of memory %q: %w", m.ID, err)
		}
		meta = string(data)
	}

	return map[string]*pb.Value{
		keyMemoryID:      stringValue(m.ID),
		keyProjectID:     stringValue(m.ProjectID),
		keyChapterID:     stringValue(m.ChapterID),
		keyMemoryType:    stringValue(string(m.MemoryType)),
		keyTitle:         stringValue(m.Title),
		keyContent:       stringValue(m.Content),
		keyStoryTimeline: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(m.StoryTimeline)}},
		keyImportance:    {Kind: &pb.Value_DoubleValue{DoubleValue: m.ImportanceScore}},
		keyMetadata:      stringValue(meta),
		keyCreatedAt:     stringValue(m.CreatedAt.Format(time.RFC3339)),
	}, nil
}

// payloadToMemory converts a point payload back into a memory.
func payloadToMemory(payload map[string]*pb.Value) entities.StoryMemory {
	memory := entities.StoryMemory{
		ID:              getStringValue(payload, keyMemoryID),
		ProjectID:       getStringValue(payload, keyProjectID),
		ChapterID:       getStringValue(payload, keyChapterID),
		MemoryType:      entities.MemoryType(getStringValue(payload, keyMemoryType)),
		Title:           getStringValue(payload, keyTitle),
		Content:         getStringValue(payload, keyContent),
		StoryTimeline:   int(getIntValue(payload, keyStoryTimeline)),
		ImportanceScore: getDoubleValue(payload, keyImportance),
	}

	if meta := getStringValue(payload, keyMetadata); meta != "" {
		// Malformed metadata is dropped rather than failing the search.
		_ = json.Unmarshal([]byte(meta), &memory.Metadata)
	}
	if created, err := time.Parse(time.RFC3339, getStringValue(payload, keyCreatedAt)); err == nil {
		memory.CreatedAt = created
	}
	return memory
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// Helper functions for payload extraction.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func getDoubleValue(payload map[string]*pb.Value, key string) float64 {
	if v, ok := payload[key]; ok {
		return v.GetDoubleValue()
	}
	return 0
}
