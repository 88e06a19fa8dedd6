// Package pg stores question embeddings in Postgres with pgvector. One row
// per (dataset, question_idx, model); vectors are halfvec so multiple models
// with different dimensions share a single table.
package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const questionEmbeddingsTable = "question_embeddings"

// Store writes and reads question embeddings inside one schema.
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

func NewStore(pool *pgxpool.Pool, schema string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if strings.TrimSpace(schema) == "" {
		return nil, fmt.Errorf("schema is required")
	}
	return &Store{pool: pool, schema: schema}, nil
}

// UpsertQuestionEmbedding stores the embedding for one dataset question.
func (s *Store) UpsertQuestionEmbedding(ctx context.Context, dataset string, questionIdx int, model string, embedding []float32) error {
	if strings.TrimSpace(dataset) == "" || strings.TrimSpace(model) == "" {
		return fmt.Errorf("dataset and model are required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	qs, err := quoteIdent(s.schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s.%s (dataset, question_idx, model, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (dataset, question_idx, model) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`, qs, questionEmbeddingsTable)

	_, err = s.pool.Exec(ctx, q, dataset, questionIdx, model, pgvector.NewHalfVector(embedding))
	return err
}

// FetchQuestionEmbedding loads one stored vector; ok is false when no row
// exists for the key.
func (s *Store) FetchQuestionEmbedding(ctx context.Context, dataset string, questionIdx int, model string) ([]float32, bool, error) {
	if strings.TrimSpace(dataset) == "" || strings.TrimSpace(model) == "" {
		return nil, false, fmt.Errorf("dataset and model are required")
	}
	qs, err := quoteIdent(s.schema)
	if err != nil {
		return nil, false, fmt.Errorf("invalid schema: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT embedding
		FROM %s.%s
		WHERE dataset = $1 AND question_idx = $2 AND model = $3
	`, qs, questionEmbeddingsTable)

	rows, err := s.pool.Query(ctx, q, dataset, questionIdx, model)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	var vec pgvector.HalfVector
	if err := rows.Scan(&vec); err != nil {
		return nil, false, err
	}
	return vec.Slice(), true, rows.Err()
}

// FilterMissingQuestions returns the subset of questionIdxs with no stored
// embedding for (dataset, model). Backfill uses this to enqueue only work
// that is actually missing.
func (s *Store) FilterMissingQuestions(ctx context.Context, dataset string, model string, questionIdxs []int) ([]int, error) {
	if strings.TrimSpace(dataset) == "" || strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("dataset and model are required")
	}
	if len(questionIdxs) == 0 {
		return nil, nil
	}
	qs, err := quoteIdent(s.schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	ids := make([]int64, len(questionIdxs))
	for i, idx := range questionIdxs {
		ids[i] = int64(idx)
	}

	q := fmt.Sprintf(`
		WITH ids AS (
			SELECT unnest($3::bigint[]) AS question_idx
		)
		SELECT ids.question_idx
		FROM ids
		LEFT JOIN %s.%s qe
			ON qe.dataset = $1
			AND qe.question_idx = ids.question_idx
			AND qe.model = $2
		WHERE qe.question_idx IS NULL
	`, qs, questionEmbeddingsTable)

	rows, err := s.pool.Query(ctx, q, dataset, model, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		out = append(out, int(idx))
	}
	return out, rows.Err()
}

// DeleteDataset removes all stored embeddings (all models) for a dataset.
func (s *Store) DeleteDataset(ctx context.Context, dataset string) error {
	if strings.TrimSpace(dataset) == "" {
		return nil
	}
	qs, err := quoteIdent(s.schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	q := fmt.Sprintf(`DELETE FROM %s.%s WHERE dataset = $1`, qs, questionEmbeddingsTable)
	_, err = s.pool.Exec(ctx, q, dataset)
	return err
}
