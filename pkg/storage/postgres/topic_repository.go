package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

const uniqueViolation = "23505"

type TopicRepository struct {
	db *DB
}

func NewTopicRepository(db *DB) *TopicRepository {
	return &TopicRepository{db: db}
}

func (r *TopicRepository) Create(ctx context.Context, topic *types.Topic) (*types.Topic, error) {
	keywords, err := json.Marshal(topic.Keywords)
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}

	row := r.db.Pool().QueryRow(ctx, `
		INSERT INTO topics (name, type, keywords, description, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		topic.Name, string(topic.Type), keywords, topic.Description, topic.Color,
	)

	out := *topic
	if err := row.Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("topic %q: %w", topic.Name, types.ErrDuplicateName)
		}
		return nil, fmt.Errorf("insert topic: %w", err)
	}
	return &out, nil
}

func (r *TopicRepository) Update(ctx context.Context, topic *types.Topic) (*types.Topic, error) {
	keywords, err := json.Marshal(topic.Keywords)
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}

	row := r.db.Pool().QueryRow(ctx, `
		UPDATE topics
		SET name = $2, type = $3, keywords = $4, description = $5, color = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		topic.ID, topic.Name, string(topic.Type), keywords, topic.Description, topic.Color,
	)

	out := *topic
	if err := row.Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("topic %d: %w", topic.ID, types.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("topic %q: %w", topic.Name, types.ErrDuplicateName)
		}
		return nil, fmt.Errorf("update topic: %w", err)
	}
	return &out, nil
}

// Delete removes a topic, its workspace links (via cascade) and prunes
// its entries from content item score lists so no dangling references
// remain.
func (r *TopicRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topic %d: %w", id, types.ErrNotFound)
	}

	_, err = tx.Exec(ctx, `
		UPDATE content_items
		SET scores = COALESCE(
			(SELECT jsonb_agg(e) FROM jsonb_array_elements(scores) e
			 WHERE (e->>'topic_id')::bigint <> $1),
			'[]'::jsonb),
		    relevance_score = COALESCE(
			(SELECT max((e->>'score')::float8) FROM jsonb_array_elements(scores) e
			 WHERE (e->>'topic_id')::bigint <> $1),
			0),
		    updated_at = now()
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(scores) e
			WHERE (e->>'topic_id')::bigint = $1
		)`, id)
	if err != nil {
		return fmt.Errorf("prune topic scores: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *TopicRepository) GetByID(ctx context.Context, id int64) (*types.Topic, error) {
	row := r.db.Pool().QueryRow(ctx, topicSelect+` WHERE id = $1`, id)
	topic, err := scanTopic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("topic %d: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

func (r *TopicRepository) List(ctx context.Context) ([]*types.Topic, error) {
	rows, err := r.db.Pool().Query(ctx, topicSelect+` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
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

const topicSelect = `
	SELECT id, name, type, keywords, description, color, created_at, updated_at
	FROM topics`

func scanTopic(row pgx.Row) (*types.Topic, error) {
	var (
		topic       types.Topic
		topicType   string
		keywordsRaw []byte
	)
	err := row.Scan(&topic.ID, &topic.Name, &topicType, &keywordsRaw,
		&topic.Description, &topic.Color, &topic.CreatedAt, &topic.UpdatedAt)
	if err != nil {
		return nil, err
	}
	topic.Type = types.TopicType(topicType)
	if err := json.Unmarshal(keywordsRaw, &topic.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	return &topic, nil
}
