// Package mocks provides mock implementations for testing.
package mocks

import "context"

// Embedder is a mock implementation of ports.Embedder.
type Embedder struct {
	EmbeddingResult []float32
	Err             error

	// Call tracking
	EmbedCallCount      int
	EmbedBatchCallCount int
	LastTexts           []string
}

// Embed returns the configured embedding or error.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.EmbedCallCount++
	m.LastTexts = []string{text}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.EmbeddingResult, nil
}

// EmbedBatch returns the configured embedding once per text.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.EmbedBatchCallCount++
	m.LastTexts = texts
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.EmbeddingResult
	}
	return result, nil
}
