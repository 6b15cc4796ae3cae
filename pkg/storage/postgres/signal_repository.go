package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/scoutdeck/scout/pkg/intel/signal"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

type SignalRepository struct {
	db *DB
}

func NewSignalRepository(db *DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// Upsert creates the signal for its (item, workspace) pair or escalates
// the existing one when the new priority outranks it. Returns whether a
// new row was inserted. Lower-or-equal priority re-emissions leave the
// stored signal untouched.
func (r *SignalRepository) Upsert(ctx context.Context, sig *types.Signal) (bool, error) {
	row := r.db.Pool().QueryRow(ctx, `
		INSERT INTO signals
			(kind, title, description, priority, priority_rank,
			 workspace_id, item_id, topic_id, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id, workspace_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			priority_rank = EXCLUDED.priority_rank
		WHERE EXCLUDED.priority_rank > signals.priority_rank
		RETURNING id, (xmax = 0) AS inserted`,
		sig.Kind, sig.Title, sig.Description, string(sig.Priority), sig.Priority.Rank(),
		sig.WorkspaceID, sig.ItemID, sig.TopicID, sig.DetectedAt,
	)

	var inserted bool
	if err := row.Scan(&sig.ID, &inserted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict with a higher-or-equal priority row: nothing changed.
			return false, nil
		}
		return false, fmt.Errorf("upsert signal: %w", err)
	}
	return inserted, nil
}

// Acknowledge is idempotent: the first call stamps acknowledged_at,
// later calls leave it untouched.
func (r *SignalRepository) Acknowledge(ctx context.Context, id int64) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE signals
		SET acknowledged = TRUE,
		    acknowledged_at = COALESCE(acknowledged_at, now())
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("acknowledge signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("signal %d: %w", id, types.ErrNotFound)
	}
	return nil
}

func (r *SignalRepository) List(ctx context.Context, req signal.ListRequest) ([]*types.Signal, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if req.WorkspaceID != nil {
		where = append(where, `workspace_id = `+arg(*req.WorkspaceID))
	}
	if req.Acknowledged != nil {
		where = append(where, `acknowledged = `+arg(*req.Acknowledged))
	}

	query := signalSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY priority_rank DESC, detected_at DESC`
	if req.Limit > 0 {
		query += ` LIMIT ` + arg(req.Limit)
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var signals []*types.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

const signalSelect = `
	SELECT id, kind, title, description, priority,
	       workspace_id, item_id, topic_id, detected_at, acknowledged, acknowledged_at
	FROM signals`

func scanSignal(row pgx.Row) (*types.Signal, error) {
	var (
		sig   types.Signal
		prio  string
		ackAt sql.NullTime
	)
	err := row.Scan(&sig.ID, &sig.Kind, &sig.Title, &sig.Description, &prio,
		&sig.WorkspaceID, &sig.ItemID, &sig.TopicID, &sig.DetectedAt,
		&sig.Acknowledged, &ackAt)
	if err != nil {
		return nil, err
	}
	sig.Priority = types.Priority(prio)
	if ackAt.Valid {
		sig.AcknowledgedAt = ackAt.Time
	}
	return &sig, nil
}
