package semantic

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
)

type embedderModel interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// TextEmbedder adapts a langchaingo embedding model to the Embedder
// contract the index consumes.
type TextEmbedder struct {
	embedder embeddings.Embedder
}

func NewTextEmbedder(model embedderModel) (*TextEmbedder, error) {
	embedder, err := embeddings.NewEmbedder(model)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &TextEmbedder{embedder: embedder}, nil
}

func (e *TextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return out, nil
}
