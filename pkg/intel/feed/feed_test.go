package feed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

// fakeArticleStore applies the same read-time predicate as the real
// store: an item is visible when its best topic score reaches the
// query's effective threshold.
type fakeArticleStore struct {
	items     []*types.ContentItem
	lastQuery types.ItemQuery
}

func (s *fakeArticleStore) Query(_ context.Context, q types.ItemQuery) (*types.ItemPage, error) {
	s.lastQuery = q

	page := &types.ItemPage{}
	min := q.EffectiveMinScore()
	for _, item := range s.items {
		if min > 0 && item.BestScore() < min {
			continue
		}
		page.Items = append(page.Items, item)
	}
	page.Total = len(page.Items)
	return page, nil
}

func scoredItem(id int64, best float64) *types.ContentItem {
	return &types.ContentItem{
		ID:          id,
		Title:       "story",
		PublishedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Scores:      []types.TopicScore{{TopicID: 1, Score: best}},
	}
}

func newTestService(store *fakeArticleStore) *Service {
	logger := zerolog.Nop()
	return NewService(store, &Config{MinRelevanceScore: 0.6, PageSize: 50}, &logger)
}

func TestArticles_DefaultThresholdFilters(t *testing.T) {
	store := &fakeArticleStore{items: []*types.ContentItem{
		scoredItem(1, 0.59),
		scoredItem(2, 0.6),
		scoredItem(3, 0.7),
	}}
	svc := newTestService(store)

	page, err := svc.Articles(context.Background(), types.ItemQuery{})
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}

	if store.lastQuery.MinRelevanceScore != 0.6 {
		t.Errorf("forwarded MinRelevanceScore = %v, want 0.6", store.lastQuery.MinRelevanceScore)
	}
	if len(page.Items) != 2 {
		t.Fatalf("got %d items, want 2 (0.59 filtered, 0.6 kept)", len(page.Items))
	}
	for _, item := range page.Items {
		if item.BestScore() < 0.6 {
			t.Errorf("item %d with best score %v leaked below the threshold", item.ID, item.BestScore())
		}
	}
	if page.Items[0].ID != 2 {
		t.Errorf("item at exactly 0.6 must be included, got first item %d", page.Items[0].ID)
	}
}

func TestArticles_ExplicitThresholdPassesThrough(t *testing.T) {
	store := &fakeArticleStore{items: []*types.ContentItem{
		scoredItem(1, 0.3),
		scoredItem(2, 0.5),
	}}
	svc := newTestService(store)

	page, err := svc.Articles(context.Background(), types.ItemQuery{MinRelevanceScore: 0.4})
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != 2 {
		t.Errorf("explicit 0.4 threshold should keep only item 2, got %+v", page.Items)
	}
}

func TestArticles_NegativeThresholdDisablesFilter(t *testing.T) {
	store := &fakeArticleStore{items: []*types.ContentItem{
		scoredItem(1, 0),
		scoredItem(2, 0.9),
	}}
	svc := newTestService(store)

	page, err := svc.Articles(context.Background(), types.ItemQuery{MinRelevanceScore: -1})
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("negative threshold should disable filtering, got %d items", len(page.Items))
	}
}

func TestArticles_DefaultPageSizeApplied(t *testing.T) {
	store := &fakeArticleStore{}
	svc := newTestService(store)

	if _, err := svc.Articles(context.Background(), types.ItemQuery{}); err != nil {
		t.Fatalf("Articles() error = %v", err)
	}
	if store.lastQuery.Limit != 50 {
		t.Errorf("forwarded Limit = %d, want page size 50", store.lastQuery.Limit)
	}
}
