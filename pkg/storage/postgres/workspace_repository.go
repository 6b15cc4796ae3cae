package postgres

import (
	"context"
	"fmt"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

// WorkspaceRepository manages the workspace↔topic and workspace↔source
// join tables. Workspaces themselves are owned upstream; only their
// ids appear here.
type WorkspaceRepository struct {
	db *DB
}

func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

func (r *WorkspaceRepository) LinkTopic(ctx context.Context, workspaceID, topicID int64) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO workspace_topics (workspace_id, topic_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, workspaceID, topicID)
	if err != nil {
		return fmt.Errorf("link topic to workspace: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) UnlinkTopic(ctx context.Context, workspaceID, topicID int64) error {
	_, err := r.db.Pool().Exec(ctx,
		`DELETE FROM workspace_topics WHERE workspace_id = $1 AND topic_id = $2`,
		workspaceID, topicID)
	if err != nil {
		return fmt.Errorf("unlink topic from workspace: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) LinkSource(ctx context.Context, workspaceID, sourceID int64) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO workspace_sources (workspace_id, source_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, workspaceID, sourceID)
	if err != nil {
		return fmt.Errorf("link source to workspace: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) UnlinkSource(ctx context.Context, workspaceID, sourceID int64) error {
	_, err := r.db.Pool().Exec(ctx,
		`DELETE FROM workspace_sources WHERE workspace_id = $1 AND source_id = $2`,
		workspaceID, sourceID)
	if err != nil {
		return fmt.Errorf("unlink source from workspace: %w", err)
	}
	return nil
}

// WorkspacesForSource returns the ids of workspaces subscribed to a source.
func (r *WorkspaceRepository) WorkspacesForSource(ctx context.Context, sourceID int64) ([]int64, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT workspace_id FROM workspace_sources WHERE source_id = $1 ORDER BY workspace_id`,
		sourceID)
	if err != nil {
		return nil, fmt.Errorf("workspaces for source: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TopicsForWorkspaces returns the union of topics tracked by the given
// workspaces, each topic at most once.
func (r *WorkspaceRepository) TopicsForWorkspaces(ctx context.Context, workspaceIDs []int64) ([]*types.Topic, error) {
	if len(workspaceIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool().Query(ctx, `
		SELECT DISTINCT t.id, t.name, t.type, t.keywords, t.description, t.color, t.created_at, t.updated_at
		FROM topics t
		JOIN workspace_topics wt ON wt.topic_id = t.id
		WHERE wt.workspace_id = ANY($1)
		ORDER BY t.id`, workspaceIDs)
	if err != nil {
		return nil, fmt.Errorf("topics for workspaces: %w", err)
	}
	defer rows.Close()

	var topics []*types.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}
