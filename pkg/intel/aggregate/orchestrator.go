package aggregate

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scoutdeck/scout/pkg/intel/normalize"
	"github.com/scoutdeck/scout/pkg/intel/signal"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

type sourceStore interface {
	ListEnabled(ctx context.Context) ([]*types.ContentSource, error)
	MarkFetched(ctx context.Context, sourceID int64, at time.Time) error
}

type fetcherRegistry interface {
	Fetch(ctx context.Context, source *types.ContentSource, since time.Time) ([]types.RawItem, error)
}

type normalizer interface {
	Normalize(ctx context.Context, raw types.RawItem, source *types.ContentSource) (normalize.Outcome, *types.ContentItem, error)
}

type scorer interface {
	Score(item *types.ContentItem, topics []*types.Topic) []types.TopicScore
}

type ruleEngine interface {
	Evaluate(ctx context.Context, in signal.Input) []*types.Signal
}

type signalEmitter interface {
	Emit(ctx context.Context, signals []*types.Signal) (int, error)
}

type itemStore interface {
	Upsert(ctx context.Context, item *types.ContentItem) (*types.ContentItem, error)
}

type workspaceStore interface {
	WorkspacesForSource(ctx context.Context, sourceID int64) ([]int64, error)
	TopicsForWorkspaces(ctx context.Context, workspaceIDs []int64) ([]*types.Topic, error)
}

type semanticIndex interface {
	Upsert(ctx context.Context, itemID int64, text string) error
}

// Orchestrator drives one end-to-end aggregation run across all enabled
// sources: fetch, normalize, score, evaluate rules, update the semantic
// index. Per-source failures are collected; a run always completes with
// a summary, even when every source failed.
type Orchestrator struct {
	sources    sourceStore
	fetchers   fetcherRegistry
	normalizer normalizer
	scorer     scorer
	engine     ruleEngine
	signals    signalEmitter
	items      itemStore
	workspaces workspaceStore
	// index is optional; nil disables semantic upserts.
	index semanticIndex

	cfg    *Config
	logger *zerolog.Logger
}

func NewOrchestrator(
	cfg *Config,
	logger *zerolog.Logger,
	sources sourceStore,
	fetchers fetcherRegistry,
	normalizer normalizer,
	scorer scorer,
	engine ruleEngine,
	signals signalEmitter,
	items itemStore,
	workspaces workspaceStore,
	index semanticIndex,
) *Orchestrator {
	return &Orchestrator{
		sources:    sources,
		fetchers:   fetchers,
		normalizer: normalizer,
		scorer:     scorer,
		engine:     engine,
		signals:    signals,
		items:      items,
		workspaces: workspaces,
		index:      index,
		cfg:        cfg,
		logger:     logger,
	}
}

// runState accumulates the summary across worker goroutines.
type runState struct {
	mu      sync.Mutex
	summary *types.RunSummary

	budgetCtx  context.Context
	budgetOnce sync.Once
}

func (s *runState) recordError(source, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Errors = append(s.summary.Errors, types.RunError{Source: source, Message: message})
}

// budgetExceeded reports whether the run budget has expired, recording
// the budget marker in the summary exactly once.
func (s *runState) budgetExceeded() bool {
	if s.budgetCtx.Err() == nil {
		return false
	}
	s.budgetOnce.Do(func() {
		s.recordError("run", "wall-clock budget exceeded, remaining sources skipped")
	})
	return true
}

// Run executes one aggregation pass and returns its summary. Run never
// returns an error: failures are reported inside the summary.
func (o *Orchestrator) Run(ctx context.Context) *types.RunSummary {
	state := &runState{
		summary: &types.RunSummary{
			RunID:     uuid.NewString(),
			StartedAt: time.Now(),
		},
	}

	budgetCtx, cancelBudget := context.WithTimeout(context.Background(), o.cfg.RunBudget)
	defer cancelBudget()
	state.budgetCtx = budgetCtx

	o.logger.Info().Str("run_id", state.summary.RunID).Msg("Starting aggregation run")

	sources, err := o.sources.ListEnabled(ctx)
	if err != nil {
		state.recordError("run", "list sources: "+err.Error())
		state.summary.Duration = time.Since(state.summary.StartedAt)
		return state.summary
	}

	sourcePool := pond.NewPool(o.cfg.MaxSourceConcurrency)
	itemPool := pond.NewPool(o.cfg.MaxItemConcurrency)

	for _, source := range sources {
		source := source
		sourcePool.Submit(func() {
			// The budget stops new fetches from starting; in-flight
			// sources drain on the parent context.
			if state.budgetExceeded() {
				return
			}
			o.processSource(ctx, source, itemPool, state)
		})
	}

	sourcePool.StopAndWait()
	itemPool.StopAndWait()

	state.summary.Duration = time.Since(state.summary.StartedAt)

	o.logger.Info().
		Str("run_id", state.summary.RunID).
		Int("items_processed", state.summary.ItemsProcessed).
		Int("items_skipped", state.summary.ItemsSkipped).
		Int("items_updated", state.summary.ItemsUpdated).
		Int("signals_emitted", state.summary.SignalsEmitted).
		Int("errors", len(state.summary.Errors)).
		Dur("duration", state.summary.Duration).
		Msg("Aggregation run complete")

	return state.summary
}

func (o *Orchestrator) processSource(ctx context.Context, source *types.ContentSource, itemPool pond.Pool, state *runState) {
	logger := o.logger.With().Str("source", source.Name).Logger()

	raws, err := o.fetchers.Fetch(ctx, source, source.LastFetchedAt)
	if err != nil {
		state.recordError(source.Name, err.Error())
		logger.Error().Err(err).Msg("Source fetch failed")
		return
	}

	workspaceIDs, err := o.workspaces.WorkspacesForSource(ctx, source.ID)
	if err != nil {
		state.recordError(source.Name, "resolve workspaces: "+err.Error())
		return
	}

	topics, err := o.workspaces.TopicsForWorkspaces(ctx, workspaceIDs)
	if err != nil {
		state.recordError(source.Name, "load topics: "+err.Error())
		return
	}

	logger.Debug().
		Int("items", len(raws)).
		Int("workspaces", len(workspaceIDs)).
		Int("topics", len(topics)).
		Msg("Fetched source batch")

	var persistFailed atomic.Bool

	group := itemPool.NewGroup()
	for _, raw := range raws {
		raw := raw
		group.Submit(func() {
			o.processItem(ctx, raw, source, workspaceIDs, topics, state, &persistFailed, &logger)
		})
	}
	_ = group.Wait()

	// A failed persist would leave its item behind an advanced cursor
	// forever, so the cursor holds until a clean pass over the source.
	if persistFailed.Load() {
		logger.Warn().Msg("Batch had persist failures, fetch cursor not advanced")
		return
	}

	if err := o.sources.MarkFetched(ctx, source.ID, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("Failed to update source fetch timestamp")
	}
}

func (o *Orchestrator) processItem(
	ctx context.Context,
	raw types.RawItem,
	source *types.ContentSource,
	workspaceIDs []int64,
	topics []*types.Topic,
	state *runState,
	persistFailed *atomic.Bool,
	logger *zerolog.Logger,
) {
	outcome, item, err := o.normalizer.Normalize(ctx, raw, source)
	if err != nil {
		// Item-level failures are counted, not surfaced individually;
		// source-level errors already report aggregate health.
		state.mu.Lock()
		state.summary.ItemsSkipped++
		state.mu.Unlock()
		logger.Debug().Err(err).Str("url", raw.URL).Msg("Item normalization failed")
		return
	}

	if outcome == normalize.OutcomeSkip {
		state.mu.Lock()
		state.summary.ItemsSkipped++
		state.mu.Unlock()
		return
	}

	previousBest := item.BestScore()
	item.Scores = o.scorer.Score(item, topics)

	saved, err := o.items.Upsert(ctx, item)
	if err != nil {
		persistFailed.Store(true)
		state.recordError(source.Name, "persist item: "+err.Error())
		return
	}

	evaluateRules := outcome == normalize.OutcomeNew ||
		math.Abs(saved.BestScore()-previousBest) >= o.cfg.MaterialScoreDelta

	if evaluateRules {
		signals := o.engine.Evaluate(ctx, signal.Input{
			Item:         saved,
			WorkspaceIDs: workspaceIDs,
			Topics:       topics,
		})
		if len(signals) > 0 {
			created, err := o.signals.Emit(ctx, signals)
			if err != nil {
				state.recordError(source.Name, "emit signals: "+err.Error())
			}
			state.mu.Lock()
			state.summary.SignalsEmitted += created
			state.mu.Unlock()
		}
	}

	if o.index != nil {
		if err := o.index.Upsert(ctx, saved.ID, saved.SearchText()); err != nil {
			// Degraded semantic index never aborts the run.
			if errors.Is(err, types.ErrUnavailable) {
				logger.Warn().Err(err).Int64("item_id", saved.ID).Msg("Semantic index unavailable, embedding skipped")
			} else {
				logger.Error().Err(err).Int64("item_id", saved.ID).Msg("Semantic index upsert failed")
			}
		}
	}

	state.mu.Lock()
	state.summary.ItemsProcessed++
	if outcome == normalize.OutcomeUpdate {
		state.summary.ItemsUpdated++
	}
	state.mu.Unlock()
}
