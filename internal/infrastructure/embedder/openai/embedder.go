// Package openai provides an Embedder implementation using OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/lore-novel/internal/infrastructure/config"
)

// VectorSize is the dimension of text-embedding-3-small vectors.
const VectorSize = 1536

// maxBatchSize bounds the number of inputs sent in one request.
const maxBatchSize = 256

// Embedder implements the Embedder interface using OpenAI.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg config.EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}

	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Embed generates a vector embedding for a memory or search query.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}

	return embeddings[0], nil
}

// EmbedBatch generates one embedding per text, in input order. Large inputs
// are split across several requests.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))
		//nolint:loopcall // the API caps inputs per request
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	return embeddings, nil
}
