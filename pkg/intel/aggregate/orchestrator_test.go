package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scoutdeck/scout/pkg/intel/normalize"
	"github.com/scoutdeck/scout/pkg/intel/score"
	"github.com/scoutdeck/scout/pkg/intel/signal"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

type memItemStore struct {
	mu     sync.Mutex
	nextID int64
	byFp   map[string]*types.ContentItem
}

func newMemItemStore() *memItemStore {
	return &memItemStore{nextID: 1, byFp: map[string]*types.ContentItem{}}
}

func (s *memItemStore) GetByFingerprint(_ context.Context, fp string) (*types.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byFp[fp], nil
}

func (s *memItemStore) Upsert(_ context.Context, item *types.ContentItem) (*types.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byFp[item.Fingerprint]; ok {
		existing.Likes = item.Likes
		existing.Comments = item.Comments
		existing.Shares = item.Shares
		existing.Scores = item.Scores
		return existing, nil
	}
	stored := *item
	stored.ID = s.nextID
	stored.CreatedAt = time.Now()
	s.nextID++
	s.byFp[stored.Fingerprint] = &stored
	return &stored, nil
}

func (s *memItemStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byFp)
}

type memSourceStore struct {
	mu      sync.Mutex
	sources []*types.ContentSource
	fetched map[int64]time.Time
}

func (s *memSourceStore) ListEnabled(_ context.Context) ([]*types.ContentSource, error) {
	return s.sources, nil
}

func (s *memSourceStore) MarkFetched(_ context.Context, sourceID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched == nil {
		s.fetched = map[int64]time.Time{}
	}
	s.fetched[sourceID] = at
	return nil
}

type fakeFetchers struct {
	itemsBySource map[int64][]types.RawItem
	errBySource   map[int64]error
}

func (f *fakeFetchers) Fetch(_ context.Context, source *types.ContentSource, _ time.Time) ([]types.RawItem, error) {
	if err := f.errBySource[source.ID]; err != nil {
		return nil, err
	}
	return f.itemsBySource[source.ID], nil
}

type fakeWorkspaces struct {
	workspacesBySource map[int64][]int64
	topics             []*types.Topic
}

func (f *fakeWorkspaces) WorkspacesForSource(_ context.Context, sourceID int64) ([]int64, error) {
	return f.workspacesBySource[sourceID], nil
}

func (f *fakeWorkspaces) TopicsForWorkspaces(_ context.Context, workspaceIDs []int64) ([]*types.Topic, error) {
	if len(workspaceIDs) == 0 {
		return nil, nil
	}
	return f.topics, nil
}

type memSignalStore struct {
	mu     sync.Mutex
	nextID int64
	byPair map[[2]int64]*types.Signal
}

func newMemSignalStore() *memSignalStore {
	return &memSignalStore{nextID: 1, byPair: map[[2]int64]*types.Signal{}}
}

func (s *memSignalStore) Upsert(_ context.Context, sig *types.Signal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{sig.ItemID, sig.WorkspaceID}
	if existing, ok := s.byPair[key]; ok {
		if sig.Priority.Rank() > existing.Priority.Rank() {
			existing.Priority = sig.Priority
			existing.Kind = sig.Kind
		}
		return false, nil
	}
	stored := *sig
	stored.ID = s.nextID
	s.nextID++
	s.byPair[key] = &stored
	return true, nil
}

func (s *memSignalStore) Acknowledge(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.byPair {
		if sig.ID == id {
			sig.Acknowledged = true
			return nil
		}
	}
	return types.ErrNotFound
}

func (s *memSignalStore) List(_ context.Context, _ signal.ListRequest) ([]*types.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Signal
	for _, sig := range s.byPair {
		out = append(out, sig)
	}
	return out, nil
}

type harness struct {
	orchestrator *Orchestrator
	items        *memItemStore
	signals      *memSignalStore
	sources      *memSourceStore
}

func newHarness(t *testing.T, cfg *Config, sources []*types.ContentSource, fetchers *fakeFetchers, workspaces *fakeWorkspaces, signalCfg *signal.Config) *harness {
	t.Helper()
	logger := zerolog.Nop()

	items := newMemItemStore()
	signalStore := newMemSignalStore()
	sourceStore := &memSourceStore{sources: sources}

	scorer := score.NewScorer(&score.Config{}, &logger)
	engine := signal.NewEngineFromConfig(signalCfg, nil, &logger)
	registry := signal.NewRegistry(signalStore, &logger)
	norm := normalize.NewNormalizer(items, &logger)

	orch := NewOrchestrator(cfg, &logger, sourceStore, fetchers, norm, scorer, engine, registry, items, workspaces, nil)
	return &harness{orchestrator: orch, items: items, signals: signalStore, sources: sourceStore}
}

func defaultConfig() *Config {
	return &Config{
		MaxSourceConcurrency: 2,
		MaxItemConcurrency:   4,
		RunBudget:            time.Minute,
		MaterialScoreDelta:   0.05,
	}
}

func defaultSignalConfig() *signal.Config {
	return &signal.Config{
		HighRelevanceCutoff: 0.25,
		CriticalKeywords:    []string{"acquisition", "layoffs"},
		SpikeWindow:         24 * time.Hour,
		SpikeTrailing:       7 * 24 * time.Hour,
		SpikeMultiplier:     3,
		SpikeMinCount:       5,
	}
}

func TestRun_EndToEndScenario(t *testing.T) {
	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	source := &types.ContentSource{ID: 1, Name: "Tech News", Type: types.SourceTypeRSS, Enabled: true}

	fetchers := &fakeFetchers{itemsBySource: map[int64][]types.RawItem{
		1: {{
			Title:       "Acme announces acquisition to expand cloud platform",
			Description: "The deal strengthens Acme's cloud offering.",
			URL:         "https://example.com/acme-deal",
			PublishedAt: published,
		}},
	}}
	workspaces := &fakeWorkspaces{
		workspacesBySource: map[int64][]int64{1: {1}},
		topics: []*types.Topic{
			{ID: 1, Name: "M&A", Type: types.TopicTypeEventType, Keywords: []string{"acquisition"}},
			{ID: 2, Name: "Cloud", Type: types.TopicTypeTechnology, Keywords: []string{"cloud", "cloud computing"}},
		},
	}

	h := newHarness(t, defaultConfig(), []*types.ContentSource{source}, fetchers, workspaces, defaultSignalConfig())
	summary := h.orchestrator.Run(context.Background())

	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}
	if summary.ItemsProcessed != 1 {
		t.Fatalf("items processed = %d, want 1", summary.ItemsProcessed)
	}

	if h.items.count() != 1 {
		t.Fatalf("stored %d items, want 1", h.items.count())
	}
	var item *types.ContentItem
	for _, it := range h.items.byFp {
		item = it
	}
	byTopic := map[int64]float64{}
	for _, s := range item.Scores {
		byTopic[s.TopicID] = s.Score
	}
	if byTopic[1] < 0.3 {
		t.Errorf("M&A score = %v, want >= 0.3", byTopic[1])
	}
	if byTopic[2] < 0.3 {
		t.Errorf("Cloud score = %v, want >= 0.3", byTopic[2])
	}

	sig := h.signals.byPair[[2]int64{item.ID, 1}]
	if sig == nil {
		t.Fatal("expected a signal for (item, workspace 1)")
	}
	if sig.Priority != types.PriorityCritical {
		t.Errorf("priority = %s, want critical", sig.Priority)
	}
	if sig.TopicID != 1 {
		t.Errorf("topic id = %d, want 1 (M&A)", sig.TopicID)
	}
	if summary.SignalsEmitted != 1 {
		t.Errorf("signals emitted = %d, want 1", summary.SignalsEmitted)
	}
}

func TestRun_IdempotentReingestion(t *testing.T) {
	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	source := &types.ContentSource{ID: 1, Name: "Feed", Type: types.SourceTypeRSS, Enabled: true}

	fetchers := &fakeFetchers{itemsBySource: map[int64][]types.RawItem{
		1: {
			{Title: "Story one", URL: "https://example.com/one", PublishedAt: published},
			{Title: "Story two", URL: "https://example.com/two", PublishedAt: published},
		},
	}}
	workspaces := &fakeWorkspaces{
		workspacesBySource: map[int64][]int64{1: {1}},
		topics:             []*types.Topic{{ID: 1, Name: "Stories", Keywords: []string{"story"}}},
	}

	h := newHarness(t, defaultConfig(), []*types.ContentSource{source}, fetchers, workspaces, defaultSignalConfig())

	first := h.orchestrator.Run(context.Background())
	if first.ItemsProcessed != 2 {
		t.Fatalf("first run processed = %d, want 2", first.ItemsProcessed)
	}
	if h.items.count() != 2 {
		t.Fatalf("first run stored %d items, want 2", h.items.count())
	}

	second := h.orchestrator.Run(context.Background())
	if second.ItemsProcessed != 0 {
		t.Errorf("second run processed = %d, want 0", second.ItemsProcessed)
	}
	if second.ItemsSkipped != 2 {
		t.Errorf("second run skipped = %d, want 2", second.ItemsSkipped)
	}
	if h.items.count() != 2 {
		t.Errorf("second run stored %d items, want 2 (no duplicate fingerprints)", h.items.count())
	}
}

func TestRun_EngagementUpdateNotDuplicate(t *testing.T) {
	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	source := &types.ContentSource{ID: 1, Name: "Feed", Type: types.SourceTypeRSS, Enabled: true}

	fetchers := &fakeFetchers{itemsBySource: map[int64][]types.RawItem{
		1: {{Title: "Viral story", URL: "https://example.com/viral", PublishedAt: published, Likes: 10}},
	}}
	workspaces := &fakeWorkspaces{
		workspacesBySource: map[int64][]int64{1: {1}},
		topics:             []*types.Topic{{ID: 1, Name: "Stories", Keywords: []string{"story"}}},
	}

	h := newHarness(t, defaultConfig(), []*types.ContentSource{source}, fetchers, workspaces, defaultSignalConfig())
	h.orchestrator.Run(context.Background())

	// Same canonical URL, higher engagement.
	fetchers.itemsBySource[1][0].Likes = 50
	summary := h.orchestrator.Run(context.Background())

	if summary.ItemsUpdated != 1 {
		t.Errorf("items updated = %d, want 1", summary.ItemsUpdated)
	}
	if h.items.count() != 1 {
		t.Fatalf("stored %d items, want 1", h.items.count())
	}
	for _, item := range h.items.byFp {
		if item.Likes != 50 {
			t.Errorf("likes = %d, want updated to 50", item.Likes)
		}
	}
}

func TestRun_PartialFailure(t *testing.T) {
	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sources := []*types.ContentSource{
		{ID: 1, Name: "Broken Feed", Type: types.SourceTypeRSS, Enabled: true},
		{ID: 2, Name: "Healthy Feed", Type: types.SourceTypeRSS, Enabled: true},
	}

	fetchers := &fakeFetchers{
		itemsBySource: map[int64][]types.RawItem{
			2: {{Title: "Fine story", URL: "https://example.com/fine", PublishedAt: published}},
		},
		errBySource: map[int64]error{1: errors.New("connection reset")},
	}
	workspaces := &fakeWorkspaces{
		workspacesBySource: map[int64][]int64{1: {1}, 2: {1}},
		topics:             []*types.Topic{{ID: 1, Name: "Stories", Keywords: []string{"story"}}},
	}

	h := newHarness(t, defaultConfig(), sources, fetchers, workspaces, defaultSignalConfig())
	summary := h.orchestrator.Run(context.Background())

	if len(summary.Errors) != 1 {
		t.Fatalf("errors = %+v, want exactly one", summary.Errors)
	}
	if summary.Errors[0].Source != "Broken Feed" {
		t.Errorf("error source = %q, want Broken Feed", summary.Errors[0].Source)
	}
	if summary.ItemsProcessed != 1 {
		t.Errorf("items processed = %d, want 1 (healthy source continues)", summary.ItemsProcessed)
	}
	if _, ok := h.sources.fetched[2]; !ok {
		t.Error("healthy source should have its fetch timestamp updated")
	}
}

func TestRun_BudgetExceeded(t *testing.T) {
	source := &types.ContentSource{ID: 1, Name: "Feed", Type: types.SourceTypeRSS, Enabled: true}
	fetchers := &fakeFetchers{itemsBySource: map[int64][]types.RawItem{}}
	workspaces := &fakeWorkspaces{workspacesBySource: map[int64][]int64{}}

	cfg := defaultConfig()
	cfg.RunBudget = -time.Millisecond // already expired when the run starts

	h := newHarness(t, cfg, []*types.ContentSource{source}, fetchers, workspaces, defaultSignalConfig())
	summary := h.orchestrator.Run(context.Background())

	if summary.ItemsProcessed != 0 {
		t.Errorf("items processed = %d, want 0", summary.ItemsProcessed)
	}
	found := false
	for _, e := range summary.Errors {
		if e.Source == "run" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a budget-exceeded marker in errors, got %+v", summary.Errors)
	}
}

// failingItemStore persists everything except fingerprints it is told
// to reject, simulating transient write failures.
type failingItemStore struct {
	*memItemStore
	rejectFp string
}

func (s *failingItemStore) Upsert(ctx context.Context, item *types.ContentItem) (*types.ContentItem, error) {
	if item.Fingerprint == s.rejectFp {
		return nil, errors.New("write timeout")
	}
	return s.memItemStore.Upsert(ctx, item)
}

func TestRun_PersistFailureHoldsFetchCursor(t *testing.T) {
	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	logger := zerolog.Nop()

	sources := []*types.ContentSource{
		{ID: 1, Name: "Flaky Store Feed", Type: types.SourceTypeRSS, Enabled: true},
		{ID: 2, Name: "Healthy Feed", Type: types.SourceTypeRSS, Enabled: true},
	}
	lost := types.RawItem{Title: "Lost story", URL: "https://example.com/lost", PublishedAt: published}
	fetchers := &fakeFetchers{itemsBySource: map[int64][]types.RawItem{
		1: {lost},
		2: {{Title: "Fine story", URL: "https://example.com/fine", PublishedAt: published}},
	}}
	workspaces := &fakeWorkspaces{
		workspacesBySource: map[int64][]int64{1: {1}, 2: {1}},
		topics:             []*types.Topic{{ID: 1, Name: "Stories", Keywords: []string{"story"}}},
	}

	items := &failingItemStore{memItemStore: newMemItemStore(), rejectFp: normalize.Fingerprint(lost)}
	signalStore := newMemSignalStore()
	sourceStore := &memSourceStore{sources: sources}

	orch := NewOrchestrator(
		defaultConfig(), &logger, sourceStore, fetchers,
		normalize.NewNormalizer(items, &logger),
		score.NewScorer(&score.Config{}, &logger),
		signal.NewEngineFromConfig(defaultSignalConfig(), nil, &logger),
		signal.NewRegistry(signalStore, &logger),
		items, workspaces, nil,
	)
	summary := orch.Run(context.Background())

	if len(summary.Errors) != 1 {
		t.Fatalf("errors = %+v, want exactly the persist failure", summary.Errors)
	}

	// The failed item sits behind the cursor; advancing it would skip
	// the item on every future run.
	if _, ok := sourceStore.fetched[1]; ok {
		t.Error("source with persist failures must not advance its fetch cursor")
	}
	if _, ok := sourceStore.fetched[2]; !ok {
		t.Error("healthy source should still advance its fetch cursor")
	}
}
