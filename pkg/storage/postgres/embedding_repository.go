package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scoutdeck/scout/pkg/intel/types"
	"github.com/scoutdeck/scout/pkg/semantic"
)

// EmbeddingRepository stores one vector per content item and answers
// cosine nearest-neighbor queries via pgvector.
type EmbeddingRepository struct {
	db *DB
}

func NewEmbeddingRepository(db *DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

func (r *EmbeddingRepository) Upsert(ctx context.Context, itemID int64, vec []float32) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO item_embeddings (item_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (item_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = now()`,
		itemID, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Nearest ranks candidates by cosine similarity descending, ties broken
// by item recency. Filters narrow the candidate set before the limit is
// applied, so a filtered query still fills up to k results when enough
// candidates match.
func (r *EmbeddingRepository) Nearest(ctx context.Context, vec []float32, k int, f semantic.Filters) ([]semantic.Match, error) {
	args := []any{pgvector.NewVector(vec)}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var where []string
	if f.ExcludeItemID != 0 {
		where = append(where, `ci.id <> `+arg(f.ExcludeItemID))
	}
	if f.WorkspaceID != 0 {
		where = append(where, fmt.Sprintf(
			`ci.source_id IN (SELECT source_id FROM workspace_sources WHERE workspace_id = %s)`,
			arg(f.WorkspaceID)))
	}
	if f.ProfileID != 0 {
		where = append(where, `ci.profile_id = `+arg(f.ProfileID))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	// Cosine distance ranges to 2, so 1 - distance can go negative for
	// anti-correlated vectors; similarity stays in [0, 1].
	query := `
		SELECT ie.item_id, GREATEST(1 - (ie.embedding <=> $1), 0) AS similarity
		FROM item_embeddings ie
		JOIN content_items ci ON ci.id = ie.item_id` + clause + `
		ORDER BY ie.embedding <=> $1 ASC, ci.published_at DESC
		LIMIT ` + arg(k)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest embeddings: %w", err)
	}
	defer rows.Close()

	var matches []semantic.Match
	for rows.Next() {
		var m semantic.Match
		if err := rows.Scan(&m.ItemID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *EmbeddingRepository) VectorByItem(ctx context.Context, itemID int64) ([]float32, error) {
	var vec pgvector.Vector
	err := r.db.Pool().QueryRow(ctx,
		`SELECT embedding FROM item_embeddings WHERE item_id = $1`, itemID).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("embedding for item %d: %w", itemID, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	return vec.Slice(), nil
}
