// Package search retrieves nearest-neighbor questions from Postgres and
// fuses ranked API candidate lists from multiple recommenders.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/doujins-org/apireckit/pg"
)

// Hit is one nearest-neighbor question.
type Hit struct {
	Dataset     string
	QuestionIdx int
	Model       string
	Similarity  float32
}

type Options struct {
	// Datasets to include. Empty means "all datasets".
	Datasets []string

	// ExcludeIdxs drops specific question idx values (applied regardless of
	// dataset). Used to keep a test question out of its own neighbor set.
	ExcludeIdxs []int

	// MinSimilarity filters hits below the threshold (cosine, typically in
	// [0..1] for normalized embeddings).
	MinSimilarity float32
}

type Query struct {
	Schema     string
	Model      string
	QueryVec   []float32
	Limit      int
	Dimensions int // defaults to len(QueryVec) when 0
	Options    Options
}

// KNN runs a cosine nearest-neighbor search over `<schema>.question_embeddings`
// and returns question keys plus similarities. It does not hydrate question
// text; callers look records up in their dataset.
func KNN(ctx context.Context, pool *pgxpool.Pool, q Query) ([]Hit, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if strings.TrimSpace(q.Schema) == "" {
		return nil, fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(q.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if q.Limit <= 0 {
		return []Hit{}, nil
	}
	if len(q.QueryVec) == 0 {
		return []Hit{}, nil
	}

	dim := q.Dimensions
	if dim <= 0 {
		dim = len(q.QueryVec)
	}

	quotedSchema, err := pg.QuoteSchema(q.Schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	half := pg.HalfvecType(dim)
	table := quotedSchema + ".question_embeddings"
	opts := q.Options

	where := "WHERE model = $1 AND embedding IS NOT NULL"
	args := []any{q.Model}

	argN := 2
	if len(opts.Datasets) > 0 {
		where += fmt.Sprintf(" AND dataset = ANY($%d::text[])", argN)
		args = append(args, opts.Datasets)
		argN++
	}
	if len(opts.ExcludeIdxs) > 0 {
		excl := make([]int64, len(opts.ExcludeIdxs))
		for i, idx := range opts.ExcludeIdxs {
			excl[i] = int64(idx)
		}
		where += fmt.Sprintf(" AND question_idx <> ALL($%d::bigint[])", argN)
		args = append(args, excl)
		argN++
	}

	sql := fmt.Sprintf(`
		SELECT
			dataset,
			question_idx,
			model,
			(1 - (embedding::%s <=> ($%d::%s)))::float4 AS similarity
		FROM %s
		%s
		ORDER BY embedding::%s <=> ($%d::%s)
		LIMIT $%d
	`, half, argN, half, table, where, half, argN, half, argN+1)

	args = append(args, pgvector.NewHalfVector(q.QueryVec), q.Limit)

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		var idx int64
		if err := rows.Scan(&h.Dataset, &idx, &h.Model, &h.Similarity); err != nil {
			return nil, err
		}
		h.QuestionIdx = int(idx)
		if opts.MinSimilarity > 0 && h.Similarity < opts.MinSimilarity {
			continue
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
