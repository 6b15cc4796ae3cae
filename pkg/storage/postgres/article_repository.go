package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

type ArticleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Upsert inserts a new content item or, when the fingerprint already
// exists, refreshes the mutable fields of the existing row: engagement
// counters, scores and the denormalized best score. Identity fields set
// at first ingestion are never rewritten.
func (r *ArticleRepository) Upsert(ctx context.Context, item *types.ContentItem) (*types.ContentItem, error) {
	scores, err := json.Marshal(item.Scores)
	if err != nil {
		return nil, fmt.Errorf("marshal scores: %w", err)
	}

	row := r.db.Pool().QueryRow(ctx, `
		INSERT INTO content_items
			(source_id, profile_id, title, description, body, url, fingerprint,
			 author, image_url, category, published_at, likes, comments, shares,
			 scores, relevance_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (fingerprint) DO UPDATE SET
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments,
			shares = EXCLUDED.shares,
			scores = EXCLUDED.scores,
			relevance_score = EXCLUDED.relevance_score,
			updated_at = now()
		RETURNING id, created_at`,
		item.SourceID, item.ProfileID, item.Title, item.Description, item.Body,
		item.URL, item.Fingerprint, item.Author, item.ImageURL, item.Category,
		item.PublishedAt, item.Likes, item.Comments, item.Shares,
		scores, item.BestScore(),
	)

	out := *item
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert content item: %w", err)
	}
	return &out, nil
}

// GetByFingerprint returns (nil, nil) when no item carries the fingerprint.
func (r *ArticleRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*types.ContentItem, error) {
	row := r.db.Pool().QueryRow(ctx, itemSelect+` WHERE fingerprint = $1`, fingerprint)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item by fingerprint: %w", err)
	}
	return item, nil
}

func (r *ArticleRepository) GetByID(ctx context.Context, id int64) (*types.ContentItem, error) {
	row := r.db.Pool().QueryRow(ctx, itemSelect+` WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Query pages through the feed, newest first. The relevance filter is
// applied at read time against the stored best score, so tightening a
// workspace's threshold needs no reprocessing.
func (r *ArticleRepository) Query(ctx context.Context, q types.ItemQuery) (*types.ItemPage, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.WorkspaceID != 0 {
		where = append(where, fmt.Sprintf(
			`source_id IN (SELECT source_id FROM workspace_sources WHERE workspace_id = %s)`,
			arg(q.WorkspaceID)))
	}
	if q.ProfileID != 0 {
		where = append(where, `profile_id = `+arg(q.ProfileID))
	}
	if q.Category != "" {
		where = append(where, `category = `+arg(q.Category))
	}
	if len(q.TopicIDs) > 0 {
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM jsonb_array_elements(scores) e
			 WHERE (e->>'topic_id')::bigint = ANY(%s) AND (e->>'score')::float8 > 0)`,
			arg(q.TopicIDs)))
	}
	if min := q.EffectiveMinScore(); min > 0 {
		where = append(where, `relevance_score >= `+arg(min))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.Pool().QueryRow(ctx,
		`SELECT count(*) FROM content_items`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query := itemSelect + clause +
		` ORDER BY published_at DESC, id DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(q.Offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	page := &types.ItemPage{Total: total}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		page.Items = append(page.Items, item)
	}
	return page, rows.Err()
}

// TopicActivity counts items scoring on a topic inside the rolling
// window, plus the per-window baseline over the trailing period that
// precedes it.
func (r *ArticleRepository) TopicActivity(ctx context.Context, topicID int64, window, trailing time.Duration) (int, float64, error) {
	now := time.Now().UTC()
	windowStart := now.Add(-window)
	trailingStart := windowStart.Add(-trailing)

	const matchTopic = `EXISTS (
		SELECT 1 FROM jsonb_array_elements(scores) e
		WHERE (e->>'topic_id')::bigint = $1 AND (e->>'score')::float8 > 0)`

	var recent int
	err := r.db.Pool().QueryRow(ctx, `
		SELECT count(*) FROM content_items
		WHERE published_at >= $2 AND `+matchTopic,
		topicID, windowStart).Scan(&recent)
	if err != nil {
		return 0, 0, fmt.Errorf("count recent topic items: %w", err)
	}

	var trailingCount int
	err = r.db.Pool().QueryRow(ctx, `
		SELECT count(*) FROM content_items
		WHERE published_at >= $2 AND published_at < $3 AND `+matchTopic,
		topicID, trailingStart, windowStart).Scan(&trailingCount)
	if err != nil {
		return 0, 0, fmt.Errorf("count trailing topic items: %w", err)
	}

	windows := trailing.Hours() / window.Hours()
	if windows <= 0 {
		return recent, 0, nil
	}
	return recent, float64(trailingCount) / windows, nil
}

const itemSelect = `
	SELECT id, source_id, profile_id, title, description, body, url, fingerprint,
	       author, image_url, category, published_at, created_at,
	       likes, comments, shares, scores
	FROM content_items`

func scanItem(row pgx.Row) (*types.ContentItem, error) {
	var (
		item      types.ContentItem
		scoresRaw []byte
	)
	err := row.Scan(&item.ID, &item.SourceID, &item.ProfileID, &item.Title,
		&item.Description, &item.Body, &item.URL, &item.Fingerprint,
		&item.Author, &item.ImageURL, &item.Category, &item.PublishedAt,
		&item.CreatedAt, &item.Likes, &item.Comments, &item.Shares, &scoresRaw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scoresRaw, &item.Scores); err != nil {
		return nil, fmt.Errorf("unmarshal scores: %w", err)
	}
	return &item, nil
}
