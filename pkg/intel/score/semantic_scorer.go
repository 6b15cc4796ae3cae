package score

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

// SemanticScorer blends embedding similarity into keyword scoring.
// Topic centroids are built lazily and cached for the lifetime of the
// scorer. Any embedding failure degrades the call to the keyword-only
// baseline instead of failing it.
type SemanticScorer struct {
	scorer   *Scorer
	embedder textEmbedder
	timeout  time.Duration
	logger   *zerolog.Logger

	mu        sync.Mutex
	centroids map[int64][]float32
}

func NewSemanticScorer(scorer *Scorer, embedder textEmbedder, timeout time.Duration, logger *zerolog.Logger) *SemanticScorer {
	return &SemanticScorer{
		scorer:    scorer,
		embedder:  embedder,
		timeout:   timeout,
		logger:    logger,
		centroids: make(map[int64][]float32),
	}
}

func (s *SemanticScorer) Score(item *types.ContentItem, topics []*types.Topic) []types.TopicScore {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	centroids, err := s.ensureCentroids(ctx, topics)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Centroid build failed, falling back to keyword scoring")
		return s.scorer.Score(item, topics)
	}

	vec, err := s.embedder.EmbedText(ctx, item.SearchText())
	if err != nil {
		s.logger.Warn().Err(err).Int64("item_id", item.ID).
			Msg("Item embedding failed, falling back to keyword scoring")
		return s.scorer.Score(item, topics)
	}

	return s.scorer.ScoreSemantic(item, topics, vec, centroids)
}

// ensureCentroids embeds any topics missing from the cache and returns
// a snapshot safe for concurrent use.
func (s *SemanticScorer) ensureCentroids(ctx context.Context, topics []*types.Topic) (map[int64][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []*types.Topic
	for _, topic := range topics {
		if _, ok := s.centroids[topic.ID]; !ok {
			missing = append(missing, topic)
		}
	}

	if len(missing) > 0 {
		built, err := BuildCentroids(ctx, s.embedder, missing)
		if err != nil {
			return nil, err
		}
		for id, vec := range built {
			s.centroids[id] = vec
		}
	}

	snapshot := make(map[int64][]float32, len(s.centroids))
	for id, vec := range s.centroids {
		snapshot[id] = vec
	}
	return snapshot, nil
}
