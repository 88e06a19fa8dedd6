package pg

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModelSpec describes one configured embedding model.
type ModelSpec struct {
	Name string // stored in embedding_models.model
	Dims int    // fixed dims for the model
}

func quoteIdent(ident string) (string, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return "", fmt.Errorf("empty identifier")
	}
	for _, r := range ident {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return "", fmt.Errorf("invalid identifier %q", ident)
	}
	return `"` + ident + `"`, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func indexSuffix(model string, dims int) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s:%d", model, dims)))
	return hex.EncodeToString(h[:8])
}

// HalfvecType returns the SQL type name for a halfvec of the given dimension.
func HalfvecType(dim int) string {
	return fmt.Sprintf("halfvec(%d)", dim)
}

// UpsertModels syncs the configured model specs into
// `<schema>.embedding_models` and prunes rows for models that are no longer
// configured, including their pending tasks.
//
// Stored question embeddings for removed models are intentionally kept; they
// are inert until a config references the model again.
func UpsertModels(ctx context.Context, pool *pgxpool.Pool, schema string, models []ModelSpec) error {
	if pool == nil {
		return fmt.Errorf("pool is required")
	}
	qs, err := quoteIdent(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var active []string
	for _, m := range models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("model name is required")
		}
		if m.Dims <= 0 {
			return fmt.Errorf("model %q dims must be > 0", name)
		}

		q := fmt.Sprintf(`
			INSERT INTO %s.embedding_models (model, dims, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (model) DO UPDATE SET
				dims = EXCLUDED.dims,
				updated_at = now()
		`, qs)
		if _, err := pool.Exec(ctx, q, name, m.Dims); err != nil {
			return err
		}

		active = append(active, name)
	}

	qPruneModels := fmt.Sprintf(`
		DELETE FROM %s.embedding_models
		WHERE NOT (model = ANY($1::text[]))
	`, qs)
	if _, err := pool.Exec(ctx, qPruneModels, active); err != nil {
		return err
	}

	qPruneTasks := fmt.Sprintf(`
		DELETE FROM %s.embedding_tasks
		WHERE NOT (model = ANY($1::text[]))
	`, qs)
	if _, err := pool.Exec(ctx, qPruneTasks, active); err != nil {
		return err
	}

	qPruneDLQ := fmt.Sprintf(`
		DELETE FROM %s.embedding_dead_letters
		WHERE NOT (model = ANY($1::text[]))
	`, qs)
	if _, err := pool.Exec(ctx, qPruneDLQ, active); err != nil {
		return err
	}

	return nil
}

// EnsureModelIndexes creates a per-model partial HNSW cosine index over
// question_embeddings.
//
// This must NOT run inside a transaction because it uses CREATE INDEX
// CONCURRENTLY.
func EnsureModelIndexes(ctx context.Context, pool *pgxpool.Pool, schema string, model string, dims int) error {
	if pool == nil {
		return fmt.Errorf("pool is required")
	}
	qs, err := quoteIdent(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is required")
	}
	if dims <= 0 {
		return fmt.Errorf("dims must be > 0")
	}

	// The embedding column is cast to halfvec(dims) inside the index
	// expression so each model index has fixed dimensions.
	half := HalfvecType(dims)
	pred := "model = " + quoteLiteral(model) + " AND embedding IS NOT NULL"
	idx := fmt.Sprintf("idx_question_embeddings_hnsw_cosine__%s", indexSuffix(model, dims))

	q := fmt.Sprintf(`
		CREATE INDEX CONCURRENTLY IF NOT EXISTS %s
		ON %s.question_embeddings
		USING hnsw ((embedding::%s) halfvec_cosine_ops)
		WHERE %s
	`, idx, qs, half, pred)
	_, err = pool.Exec(ctx, q)
	return err
}

// EnsureIndexesForModels ensures the cosine index for every model spec.
func EnsureIndexesForModels(ctx context.Context, pool *pgxpool.Pool, schema string, models []ModelSpec) error {
	for _, m := range models {
		if err := EnsureModelIndexes(ctx, pool, schema, m.Name, m.Dims); err != nil {
			return err
		}
	}
	return nil
}
