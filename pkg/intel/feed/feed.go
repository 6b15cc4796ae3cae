package feed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

type Config struct {
	// MinRelevanceScore is the threshold applied to queries that do not
	// set their own. Negative disables default filtering entirely.
	MinRelevanceScore float64 `env:"FEED_MIN_RELEVANCE_SCORE,default=0.6"`
	PageSize          int     `env:"FEED_PAGE_SIZE,default=50" validate:"gte=1"`
}

type articleStore interface {
	Query(ctx context.Context, q types.ItemQuery) (*types.ItemPage, error)
}

// Service is the read surface over the article corpus. It resolves
// query defaults (relevance threshold, page size) before delegating to
// the store, so every caller sees the same curated feed.
type Service struct {
	store  articleStore
	cfg    *Config
	logger *zerolog.Logger
}

func NewService(store articleStore, cfg *Config, logger *zerolog.Logger) *Service {
	return &Service{store: store, cfg: cfg, logger: logger}
}

// Articles returns one feed page. A query with a zero MinRelevanceScore
// gets the configured threshold; an explicitly negative one disables
// filtering.
func (s *Service) Articles(ctx context.Context, q types.ItemQuery) (*types.ItemPage, error) {
	if q.MinRelevanceScore == 0 {
		q.MinRelevanceScore = s.cfg.MinRelevanceScore
	}
	if q.Limit <= 0 {
		q.Limit = s.cfg.PageSize
	}

	page, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	s.logger.Debug().
		Int64("workspace_id", q.WorkspaceID).
		Float64("min_score", q.EffectiveMinScore()).
		Int("items", len(page.Items)).
		Int("total", page.Total).
		Msg("Feed page served")

	return page, nil
}
