package score

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

type textEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

const maxCentroidConcurrency = 4

// BuildCentroids embeds each topic's keyword list into a single vector
// used for the semantic score blend. Topics are embedded concurrently;
// one failing topic fails the whole build since a partial centroid map
// would silently skew scoring.
func BuildCentroids(ctx context.Context, embedder textEmbedder, topics []*types.Topic) (map[int64][]float32, error) {
	centroids := make(map[int64][]float32, len(topics))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCentroidConcurrency)

	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			text := topic.Name + ": " + strings.Join(topic.Keywords, ", ")
			vec, err := embedder.EmbedText(ctx, text)
			if err != nil {
				return fmt.Errorf("embed topic %q: %w", topic.Name, err)
			}
			mu.Lock()
			centroids[topic.ID] = vec
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return centroids, nil
}
