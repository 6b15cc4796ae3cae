package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

// Fetcher pulls raw payloads from one kind of content source.
// A fetch failure surfaces as an error the orchestrator records as a
// source-level failure.
type Fetcher interface {
	Fetch(ctx context.Context, source *types.ContentSource, since time.Time) ([]types.RawItem, error)
}

// Registry dispatches fetches to the fetcher registered for a source type.
type Registry struct {
	fetchers map[types.SourceType]Fetcher
	logger   *zerolog.Logger
}

func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		fetchers: make(map[types.SourceType]Fetcher),
		logger:   logger,
	}
}

func (r *Registry) Register(sourceType types.SourceType, fetcher Fetcher) {
	r.fetchers[sourceType] = fetcher
}

func (r *Registry) Fetch(ctx context.Context, source *types.ContentSource, since time.Time) ([]types.RawItem, error) {
	fetcher, ok := r.fetchers[source.Type]
	if !ok {
		return nil, fmt.Errorf("unknown source type %q", source.Type)
	}

	items, err := fetcher.Fetch(ctx, source, since)
	if err != nil {
		return nil, fmt.Errorf("fetch %s source %q: %w", source.Type, source.Name, err)
	}

	r.logger.Debug().
		Str("source", source.Name).
		Str("type", string(source.Type)).
		Int("items", len(items)).
		Msg("Source fetched")

	return items, nil
}
