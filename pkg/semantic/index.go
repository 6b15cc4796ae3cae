package semantic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

type Config struct {
	Enabled bool `env:"SEMANTIC_ENABLED,default=false"`
	// Timeout bounds each embedder and vector store call. Exceeding it
	// degrades the operation instead of aborting the surrounding run.
	Timeout time.Duration `env:"SEMANTIC_TIMEOUT,default=10s"`
	// MaxTextRunes truncates item text before embedding.
	MaxTextRunes int `env:"SEMANTIC_MAX_TEXT_RUNES,default=4000"`
}

// Match is one ranked retrieval result.
type Match struct {
	ItemID     int64
	Similarity float64
}

// Filters restrict the candidate set before ranking, so a query returns
// fewer than k results only when fewer matching candidates exist.
type Filters struct {
	WorkspaceID   int64
	ProfileID     int64
	ExcludeItemID int64
}

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type vectorStore interface {
	Upsert(ctx context.Context, itemID int64, vec []float32) error
	// Nearest returns up to k matches ordered by similarity descending,
	// ties broken by item recency descending.
	Nearest(ctx context.Context, vec []float32, k int, f Filters) ([]Match, error)
	// VectorByItem returns types.ErrNotFound when no embedding exists.
	VectorByItem(ctx context.Context, itemID int64) ([]float32, error)
}

// Index maintains one embedding per content item and answers
// nearest-neighbor queries. It treats vectors as opaque; embedding
// generation is delegated to the Embedder.
type Index struct {
	embedder Embedder
	store    vectorStore
	cfg      *Config
	logger   *zerolog.Logger
}

func NewIndex(embedder Embedder, store vectorStore, cfg *Config, logger *zerolog.Logger) *Index {
	return &Index{embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// Upsert embeds the item text and stores the vector, overwriting any
// previous embedding for the item.
func (ix *Index) Upsert(ctx context.Context, itemID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, ix.cfg.Timeout)
	defer cancel()

	vec, err := ix.embedder.EmbedText(ctx, truncateRunes(text, ix.cfg.MaxTextRunes))
	if err != nil {
		return wrapUnavailable(fmt.Errorf("embed item %d: %w", itemID, err))
	}

	if err := ix.store.Upsert(ctx, itemID, vec); err != nil {
		return wrapUnavailable(fmt.Errorf("store embedding for item %d: %w", itemID, err))
	}
	return nil
}

// Query ranks the corpus against a prepared query vector.
func (ix *Index) Query(ctx context.Context, vec []float32, k int, f Filters) ([]Match, error) {
	ctx, cancel := context.WithTimeout(ctx, ix.cfg.Timeout)
	defer cancel()

	matches, err := ix.store.Nearest(ctx, vec, k, f)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("nearest neighbors: %w", err))
	}
	return clampSimilarities(matches), nil
}

// QueryText embeds a free-text query and ranks the corpus against it.
func (ix *Index) QueryText(ctx context.Context, query string, k int, f Filters) ([]Match, error) {
	embedCtx, cancel := context.WithTimeout(ctx, ix.cfg.Timeout)
	defer cancel()

	vec, err := ix.embedder.EmbedText(embedCtx, query)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("embed query: %w", err))
	}
	return ix.Query(ctx, vec, k, f)
}

// FindSimilar returns the k items nearest to an already-indexed item,
// excluding the item itself. Fails with types.ErrNotFound when the item
// has no embedding.
func (ix *Index) FindSimilar(ctx context.Context, itemID int64, k int, f Filters) ([]Match, error) {
	ctx, cancel := context.WithTimeout(ctx, ix.cfg.Timeout)
	defer cancel()

	vec, err := ix.store.VectorByItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("no embedding for item %d: %w", itemID, types.ErrNotFound)
		}
		return nil, wrapUnavailable(fmt.Errorf("load embedding for item %d: %w", itemID, err))
	}

	f.ExcludeItemID = itemID
	matches, err := ix.store.Nearest(ctx, vec, k, f)
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("nearest neighbors: %w", err))
	}
	return clampSimilarities(matches), nil
}

// clampSimilarities floors similarity at 0: anti-correlated vectors
// would otherwise surface negative values from distance-based stores.
func clampSimilarities(matches []Match) []Match {
	for i := range matches {
		if matches[i].Similarity < 0 {
			matches[i].Similarity = 0
		}
	}
	return matches
}

// wrapUnavailable tags dependency failures so callers can distinguish
// "no results" from "search unavailable".
func wrapUnavailable(err error) error {
	if errors.Is(err, types.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s", types.ErrUnavailable, err)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
