package a

import "context"

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Analyzer interface {
	AnalyzeIdentityExposures(ctx context.Context, chapter int) error
}

type Store interface {
	FindCharacterByID(ctx context.Context, id string) (string, error)
}

func bad(ctx context.Context, texts []string, e Embedder, a Analyzer) {
	for _, text := range texts {
		e.Embed(ctx, text) // want "Embed called inside loop, use EmbedBatch"
	}
	for i := 1; i <= 3; i++ {
		a.AnalyzeIdentityExposures(ctx, i) // want "AnalyzeIdentityExposures called inside loop, each call is a network round trip"
	}
}

func good(ctx context.Context, texts []string, e Embedder, db Store) {
	e.EmbedBatch(ctx, texts)
	for _, id := range texts {
		db.FindCharacterByID(ctx, id)
	}
	for range texts {
		defer func() { e.Embed(ctx, "deferred") }()
	}
}
