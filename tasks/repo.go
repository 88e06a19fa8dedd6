// Package tasks is a Postgres-backed queue of pending question-embedding
// work. Leasing is lease-until based: FetchReady bumps next_run_at forward
// so concurrent workers rarely pick the same task, and Complete/Fail only
// act when the lease still matches.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool   *pgxpool.Pool
	schema string
}

const embeddingTasksTable = "embedding_tasks"
const embeddingDeadLettersTable = "embedding_dead_letters"

func NewRepo(pool *pgxpool.Pool, schema string) *Repo {
	return &Repo{pool: pool, schema: schema}
}

func (r *Repo) Enqueue(ctx context.Context, dataset string, questionIdx int, model string, reason string) error {
	if strings.TrimSpace(dataset) == "" || strings.TrimSpace(model) == "" {
		return fmt.Errorf("dataset and model are required")
	}
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	q := fmt.Sprintf(`
		INSERT INTO %s.%s (dataset, question_idx, model, reason)
		VALUES ($1, $2, $3, COALESCE($4, 'unknown'))
		ON CONFLICT (dataset, question_idx, model) DO UPDATE SET
			reason = EXCLUDED.reason,
			next_run_at = LEAST(%s.%s.next_run_at, now()),
			updated_at = now()
	`, r.schema, embeddingTasksTable, r.schema, embeddingTasksTable)
	_, err := r.pool.Exec(ctx, q, dataset, questionIdx, model, reason)
	return err
}

// FetchReady returns up to limit tasks ready to run now, and bumps next_run_at
// forward by lockAhead to reduce duplicate work across workers.
func (r *Repo) FetchReady(ctx context.Context, limit int, lockAhead time.Duration) ([]Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	if lockAhead <= 0 {
		lockAhead = 30 * time.Second
	}
	if r.schema == "" {
		return nil, fmt.Errorf("schema is required")
	}

	now := time.Now().UTC()
	next := now.Add(lockAhead)

	q := fmt.Sprintf(`
		WITH picked AS (
			SELECT dataset, question_idx, model
			FROM %s.%s
			WHERE next_run_at <= $1
			ORDER BY next_run_at ASC, dataset ASC, question_idx ASC, model ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s.%s t
		SET next_run_at = $3,
		    updated_at = $1
		FROM picked p
		WHERE t.dataset = p.dataset
		  AND t.question_idx = p.question_idx
		  AND t.model = p.model
		RETURNING
			t.dataset, t.question_idx, t.model, t.reason, t.attempts, t.next_run_at, t.created_at, t.updated_at
	`, r.schema, embeddingTasksTable, r.schema, embeddingTasksTable)

	rows, err := r.pool.Query(ctx, q, now, limit, next)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var idx int64
		if err := rows.Scan(
			&t.Dataset,
			&idx,
			&t.Model,
			&t.Reason,
			&t.Attempts,
			&t.NextRunAt,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		t.QuestionIdx = int(idx)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Complete removes a finished task. Lease-safe: only deletes when
// next_run_at still matches leaseUntil.
func (r *Repo) Complete(ctx context.Context, t Task, leaseUntil time.Time) error {
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(t.Dataset) == "" || strings.TrimSpace(t.Model) == "" {
		return nil
	}
	q := fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE dataset = $1 AND question_idx = $2 AND model = $3 AND next_run_at = $4
	`, r.schema, embeddingTasksTable)
	_, err := r.pool.Exec(ctx, q, t.Dataset, t.QuestionIdx, t.Model, leaseUntil.UTC())
	return err
}

// Fail bumps the attempt count and reschedules the task after backoff.
func (r *Repo) Fail(ctx context.Context, t Task, leaseUntil time.Time, backoff time.Duration) error {
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(t.Dataset) == "" || strings.TrimSpace(t.Model) == "" {
		return nil
	}
	secs := int64(backoff / time.Second)
	if secs < 1 {
		secs = 1
	}
	q := fmt.Sprintf(`
		UPDATE %s.%s
		SET attempts = attempts + 1,
		    next_run_at = now() + make_interval(secs => $1),
		    updated_at = now()
		WHERE dataset = $2 AND question_idx = $3 AND model = $4 AND next_run_at = $5
	`, r.schema, embeddingTasksTable)
	_, err := r.pool.Exec(ctx, q, secs, t.Dataset, t.QuestionIdx, t.Model, leaseUntil.UTC())
	return err
}

// DeadLetter moves a task into the dead-letter table and deletes it from
// embedding_tasks so the runnable queue stays small.
//
// This is lease-safe: the task is deleted only if next_run_at matches leaseUntil.
func (r *Repo) DeadLetter(ctx context.Context, t Task, leaseUntil time.Time, cause error) error {
	if r.schema == "" {
		return fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(t.Dataset) == "" || strings.TrimSpace(t.Model) == "" {
		return nil
	}
	if cause == nil {
		cause = fmt.Errorf("unknown error")
	}

	tx, txErr := r.pool.Begin(ctx)
	if txErr != nil {
		return txErr
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q1 := fmt.Sprintf(`
		INSERT INTO %s.%s (dataset, question_idx, model, reason, error, attempts, failed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now(), now())
		ON CONFLICT (dataset, question_idx, model) DO UPDATE SET
			reason = EXCLUDED.reason,
			error = EXCLUDED.error,
			attempts = EXCLUDED.attempts,
			failed_at = EXCLUDED.failed_at,
			updated_at = now()
	`, r.schema, embeddingDeadLettersTable)
	attempts := t.Attempts
	if attempts < 0 {
		attempts = 0
	}
	if _, execErr := tx.Exec(ctx, q1, t.Dataset, t.QuestionIdx, t.Model, t.Reason, cause.Error(), attempts); execErr != nil {
		return execErr
	}

	q2 := fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE dataset = $1 AND question_idx = $2 AND model = $3 AND next_run_at = $4
	`, r.schema, embeddingTasksTable)
	if _, execErr := tx.Exec(ctx, q2, t.Dataset, t.QuestionIdx, t.Model, leaseUntil.UTC()); execErr != nil {
		return execErr
	}

	return tx.Commit(ctx)
}
