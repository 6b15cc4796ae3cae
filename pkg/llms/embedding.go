package llms

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms/openai"
)

type EmbedderModel interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbeddingModel constructs the configured embedding backend.
// Only OpenAI is wired today; the provider knob exists so a local
// backend can be added without touching callers.
func NewEmbeddingModel(cfg *Config, logger *zerolog.Logger) (EmbedderModel, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		model, err := openai.New(
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai embedding model: %w", err)
		}
		logger.Debug().Str("model", cfg.EmbeddingModel).Msg("Embedding model ready")
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}
