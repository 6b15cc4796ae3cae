package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

type SourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(ctx context.Context, source *types.ContentSource) (*types.ContentSource, error) {
	row := r.db.Pool().QueryRow(ctx, `
		INSERT INTO content_sources (name, type, url, query, language, enabled, fetch_frequency_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		source.Name, string(source.Type), source.URL, source.Query,
		source.Language, source.Enabled, int(source.FetchFrequency.Minutes()),
	)

	out := *source
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert source: %w", err)
	}
	return &out, nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id int64) (*types.ContentSource, error) {
	row := r.db.Pool().QueryRow(ctx, sourceSelect+` WHERE id = $1`, id)
	source, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("source %d: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	return source, nil
}

func (r *SourceRepository) List(ctx context.Context) ([]*types.ContentSource, error) {
	return r.list(ctx, sourceSelect+` ORDER BY id ASC`)
}

func (r *SourceRepository) ListEnabled(ctx context.Context) ([]*types.ContentSource, error) {
	return r.list(ctx, sourceSelect+` WHERE enabled ORDER BY id ASC`)
}

func (r *SourceRepository) list(ctx context.Context, query string) ([]*types.ContentSource, error) {
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []*types.ContentSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (r *SourceRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE content_sources SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set source enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %d: %w", id, types.ErrNotFound)
	}
	return nil
}

// MarkFetched records the completion time of a fetch so the next run
// can request only newer items.
func (r *SourceRepository) MarkFetched(ctx context.Context, sourceID int64, at time.Time) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE content_sources SET last_fetched_at = $2 WHERE id = $1`, sourceID, at)
	if err != nil {
		return fmt.Errorf("mark source fetched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %d: %w", sourceID, types.ErrNotFound)
	}
	return nil
}

func (r *SourceRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM content_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %d: %w", id, types.ErrNotFound)
	}
	return nil
}

const sourceSelect = `
	SELECT id, name, type, url, query, language, enabled, fetch_frequency_minutes, last_fetched_at, created_at
	FROM content_sources`

func scanSource(row pgx.Row) (*types.ContentSource, error) {
	var (
		source      types.ContentSource
		sourceType  string
		freqMinutes int
		lastFetched sql.NullTime
	)
	err := row.Scan(&source.ID, &source.Name, &sourceType, &source.URL, &source.Query,
		&source.Language, &source.Enabled, &freqMinutes, &lastFetched, &source.CreatedAt)
	if err != nil {
		return nil, err
	}
	source.Type = types.SourceType(sourceType)
	source.FetchFrequency = time.Duration(freqMinutes) * time.Minute
	if lastFetched.Valid {
		source.LastFetchedAt = lastFetched.Time
	}
	return &source, nil
}
