package signal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

type signalStore interface {
	// Upsert creates or escalates the signal for its (item, workspace)
	// pair and reports whether a new row was created.
	Upsert(ctx context.Context, sig *types.Signal) (bool, error)
	// Acknowledge transitions a signal to acknowledged. Acknowledging an
	// already-acknowledged signal is a no-op; an unknown id is ErrNotFound.
	Acknowledge(ctx context.Context, id int64) error
	List(ctx context.Context, req ListRequest) ([]*types.Signal, error)
}

// ListRequest filters signal listings. Nil fields mean "any".
type ListRequest struct {
	WorkspaceID  *int64
	Acknowledged *bool
	Limit        int
}

// Registry owns the signal lifecycle: emission through the idempotent
// (item, workspace) upsert, and the single unacknowledged→acknowledged
// transition.
type Registry struct {
	store  signalStore
	logger *zerolog.Logger
}

func NewRegistry(store signalStore, logger *zerolog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Emit persists the given signals, returning how many were newly created.
// Existing (item, workspace) pairs are escalated, never duplicated.
func (r *Registry) Emit(ctx context.Context, signals []*types.Signal) (int, error) {
	created := 0
	for _, sig := range signals {
		isNew, err := r.store.Upsert(ctx, sig)
		if err != nil {
			return created, fmt.Errorf("upsert signal (item=%d workspace=%d): %w", sig.ItemID, sig.WorkspaceID, err)
		}
		if isNew {
			created++
			r.logger.Info().
				Str("kind", sig.Kind).
				Str("priority", string(sig.Priority)).
				Int64("workspace_id", sig.WorkspaceID).
				Int64("item_id", sig.ItemID).
				Msg("Signal emitted")
		}
	}
	return created, nil
}

// Acknowledge marks a signal acknowledged. The transition is monotonic
// and idempotent: a second call succeeds without effect.
func (r *Registry) Acknowledge(ctx context.Context, id int64) error {
	if err := r.store.Acknowledge(ctx, id); err != nil {
		return fmt.Errorf("acknowledge signal %d: %w", id, err)
	}
	return nil
}

func (r *Registry) List(ctx context.Context, req ListRequest) ([]*types.Signal, error) {
	signals, err := r.store.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return signals, nil
}
