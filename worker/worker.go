// Package worker drains the embedding task queue: it polls for pending
// question-embedding tasks, encodes question titles in batches, and stores
// the vectors.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/doujins-org/apireckit/dataset"
	"github.com/doujins-org/apireckit/encoder"
	"github.com/doujins-org/apireckit/pg"
	"github.com/doujins-org/apireckit/tasks"
)

type Options struct {
	Repo     *tasks.Repo
	Store    *pg.Store
	Encoder  encoder.Encoder
	Datasets map[string]*dataset.Dataset // by dataset name

	Logger *slog.Logger

	BatchSize int
	LockAhead time.Duration
	PollEvery time.Duration

	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.BatchSize <= 0 {
		out.BatchSize = 100
	}
	if out.LockAhead <= 0 {
		out.LockAhead = 30 * time.Second
	}
	if out.PollEvery <= 0 {
		out.PollEvery = 2 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 10
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = 5 * time.Second
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 10 * time.Minute
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

type Worker struct {
	opts Options
	rng  *rand.Rand
}

func New(opts Options) (*Worker, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("task repo is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if len(opts.Datasets) == 0 {
		return nil, fmt.Errorf("at least one dataset is required")
	}
	return &Worker{
		opts: opts.withDefaults(),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run polls until the context is canceled. Between empty polls it sleeps
// PollEvery (with jitter); a full batch triggers an immediate next poll.
func (w *Worker) Run(ctx context.Context) error {
	for {
		n, err := w.ProcessOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.opts.Logger.Error("embedding batch failed", "error", err)
		}
		if n >= w.opts.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(addJitter(w.rng, w.opts.PollEvery)):
		}
	}
}

// ProcessOnce fetches one batch of ready tasks, embeds them and stores the
// vectors. It returns the number of tasks fetched.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	ready, err := w.opts.Repo.FetchReady(ctx, w.opts.BatchSize, w.opts.LockAhead)
	if err != nil {
		return 0, fmt.Errorf("fetch ready tasks: %w", err)
	}
	if len(ready) == 0 {
		return 0, nil
	}

	// Resolve question titles; tasks for unknown datasets or idx values can
	// never succeed and go straight to the dead-letter table.
	var runnable []tasks.Task
	var titles []string
	for _, t := range ready {
		ds, ok := w.opts.Datasets[t.Dataset]
		if !ok {
			w.deadLetter(ctx, t, fmt.Errorf("unknown dataset %q", t.Dataset))
			continue
		}
		rec, ok := ds.ByIdx(t.QuestionIdx)
		if !ok {
			w.deadLetter(ctx, t, fmt.Errorf("no record with idx %d in dataset %q", t.QuestionIdx, t.Dataset))
			continue
		}
		runnable = append(runnable, t)
		titles = append(titles, rec.Title)
	}
	if len(runnable) == 0 {
		return len(ready), nil
	}

	vecs, err := w.opts.Encoder.EncodeTexts(ctx, titles)
	if err != nil {
		for _, t := range runnable {
			w.fail(ctx, t, err)
		}
		return len(ready), fmt.Errorf("encode %d questions: %w", len(titles), err)
	}

	model := w.opts.Encoder.Model()
	for i, t := range runnable {
		if err := w.opts.Store.UpsertQuestionEmbedding(ctx, t.Dataset, t.QuestionIdx, model, vecs[i]); err != nil {
			w.fail(ctx, t, err)
			continue
		}
		if err := w.opts.Repo.Complete(ctx, t, t.NextRunAt); err != nil {
			w.opts.Logger.Warn("complete task failed",
				"dataset", t.Dataset, "idx", t.QuestionIdx, "error", err)
		}
	}

	w.opts.Logger.Info("embedded questions", "count", len(runnable), "model", model)
	return len(ready), nil
}

func (w *Worker) fail(ctx context.Context, t tasks.Task, cause error) {
	if t.Attempts+1 >= w.opts.MaxAttempts {
		w.deadLetter(ctx, t, cause)
		return
	}
	backoff := addJitter(w.rng, expBackoff(w.opts.BackoffBase, t.Attempts+1, w.opts.BackoffMax))
	if err := w.opts.Repo.Fail(ctx, t, t.NextRunAt, backoff); err != nil {
		w.opts.Logger.Warn("reschedule task failed",
			"dataset", t.Dataset, "idx", t.QuestionIdx, "error", err)
	}
}

func (w *Worker) deadLetter(ctx context.Context, t tasks.Task, cause error) {
	w.opts.Logger.Warn("dead-lettering task",
		"dataset", t.Dataset, "idx", t.QuestionIdx, "model", t.Model, "error", cause)
	if err := w.opts.Repo.DeadLetter(ctx, t, t.NextRunAt, cause); err != nil {
		w.opts.Logger.Error("dead-letter failed",
			"dataset", t.Dataset, "idx", t.QuestionIdx, "error", err)
	}
}

func expBackoff(base time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := math.Pow(2, float64(attempt-1))
	d := time.Duration(float64(base) * mult)
	if d > max {
		return max
	}
	return d
}

func addJitter(rng *rand.Rand, d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	// Up to 25% jitter.
	j := time.Duration(rng.Int63n(int64(d / 4)))
	return d + j
}
