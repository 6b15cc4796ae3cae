package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

type pairKey struct {
	itemID      int64
	workspaceID int64
}

// fakeSignalStore mirrors the persistence contract: one row per
// (item, workspace), escalate-only upsert, idempotent acknowledge.
type fakeSignalStore struct {
	nextID int64
	byPair map[pairKey]*types.Signal
	byID   map[int64]*types.Signal
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{
		nextID: 1,
		byPair: map[pairKey]*types.Signal{},
		byID:   map[int64]*types.Signal{},
	}
}

func (s *fakeSignalStore) Upsert(_ context.Context, sig *types.Signal) (bool, error) {
	key := pairKey{itemID: sig.ItemID, workspaceID: sig.WorkspaceID}
	if existing, ok := s.byPair[key]; ok {
		if sig.Priority.Rank() > existing.Priority.Rank() {
			existing.Priority = sig.Priority
			existing.Kind = sig.Kind
			existing.Title = sig.Title
		}
		return false, nil
	}
	stored := *sig
	stored.ID = s.nextID
	s.nextID++
	s.byPair[key] = &stored
	s.byID[stored.ID] = &stored
	return true, nil
}

func (s *fakeSignalStore) Acknowledge(_ context.Context, id int64) error {
	sig, ok := s.byID[id]
	if !ok {
		return types.ErrNotFound
	}
	sig.Acknowledged = true
	return nil
}

func (s *fakeSignalStore) List(_ context.Context, req ListRequest) ([]*types.Signal, error) {
	var out []*types.Signal
	for _, sig := range s.byID {
		if req.WorkspaceID != nil && sig.WorkspaceID != *req.WorkspaceID {
			continue
		}
		if req.Acknowledged != nil && sig.Acknowledged != *req.Acknowledged {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

func TestRegistry_EmitDeduplicatesPerPair(t *testing.T) {
	logger := zerolog.Nop()
	store := newFakeSignalStore()
	registry := NewRegistry(store, &logger)
	ctx := context.Background()

	first := []*types.Signal{
		{Kind: KindHighRelevance, Priority: types.PriorityMedium, ItemID: 1, WorkspaceID: 1},
		{Kind: KindHighRelevance, Priority: types.PriorityMedium, ItemID: 1, WorkspaceID: 2},
	}
	created, err := registry.Emit(ctx, first)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	// Re-emitting the same pair escalates in place instead of duplicating.
	second := []*types.Signal{
		{Kind: KindCriticalKeyword, Priority: types.PriorityCritical, ItemID: 1, WorkspaceID: 1},
	}
	created, err = registry.Emit(ctx, second)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0 for an existing pair", created)
	}

	stored := store.byPair[pairKey{itemID: 1, workspaceID: 1}]
	if stored.Priority != types.PriorityCritical {
		t.Errorf("priority = %s, want escalated critical", stored.Priority)
	}
	if len(store.byID) != 2 {
		t.Errorf("stored %d signals, want 2", len(store.byID))
	}
}

func TestRegistry_AcknowledgeIdempotent(t *testing.T) {
	logger := zerolog.Nop()
	store := newFakeSignalStore()
	registry := NewRegistry(store, &logger)
	ctx := context.Background()

	_, err := registry.Emit(ctx, []*types.Signal{
		{Kind: KindHighRelevance, Priority: types.PriorityMedium, ItemID: 5, WorkspaceID: 1},
	})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	if err := registry.Acknowledge(ctx, 1); err != nil {
		t.Fatalf("first Acknowledge() error = %v", err)
	}
	if err := registry.Acknowledge(ctx, 1); err != nil {
		t.Fatalf("second Acknowledge() must be a no-op, got error = %v", err)
	}
	if !store.byID[1].Acknowledged {
		t.Error("signal should remain acknowledged")
	}
}

func TestRegistry_AcknowledgeUnknownIsNotFound(t *testing.T) {
	logger := zerolog.Nop()
	registry := NewRegistry(newFakeSignalStore(), &logger)

	err := registry.Acknowledge(context.Background(), 999)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
