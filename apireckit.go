// Package apireckit recommends Java APIs for programming questions and scores
// recommendation runs against gold answers. The pipeline: embed the question,
// pull similar questions from Postgres, rank the APIs their gold answers
// mention, optionally blend in an LLM's suggestions, and fuse with RRF.
package apireckit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doujins-org/apireckit/dataset"
	"github.com/doujins-org/apireckit/encoder"
	"github.com/doujins-org/apireckit/llm"
	"github.com/doujins-org/apireckit/metrics"
	"github.com/doujins-org/apireckit/pg"
	"github.com/doujins-org/apireckit/search"
	"github.com/doujins-org/apireckit/tasks"
)

type Options struct {
	Pool   *pgxpool.Pool
	Schema string

	Encoder  encoder.Encoder
	Datasets map[string]*dataset.Dataset // by dataset name

	// LLM is optional; when nil, Recommend never asks a chat model.
	LLM *llm.Client

	Logger *slog.Logger
}

// Toolkit wires the retrieval pipeline together. Hosts that only need the
// metrics engine can use package metrics directly without one.
type Toolkit struct {
	pool     *pgxpool.Pool
	schema   string
	enc      encoder.Encoder
	datasets map[string]*dataset.Dataset
	llm      *llm.Client
	store    *pg.Store
	repo     *tasks.Repo
	logger   *slog.Logger
}

func New(opts Options) (*Toolkit, error) {
	if opts.Pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if opts.Schema == "" {
		return nil, fmt.Errorf("schema is required")
	}
	if opts.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if len(opts.Datasets) == 0 {
		return nil, fmt.Errorf("at least one dataset is required")
	}

	store, err := pg.NewStore(opts.Pool, opts.Schema)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Toolkit{
		pool:     opts.Pool,
		schema:   opts.Schema,
		enc:      opts.Encoder,
		datasets: opts.Datasets,
		llm:      opts.LLM,
		store:    store,
		repo:     tasks.NewRepo(opts.Pool, opts.Schema),
		logger:   logger,
	}, nil
}

// Store exposes the embedding store, e.g. for hosts running their own worker.
func (t *Toolkit) Store() *pg.Store { return t.store }

// TaskRepo exposes the embedding task queue.
func (t *Toolkit) TaskRepo() *tasks.Repo { return t.repo }

type RecommendRequest struct {
	Question string

	// Datasets restricts neighbor retrieval; empty means all stored datasets.
	Datasets []string

	// ExcludeIdxs keeps specific questions out of the neighbor set, e.g. the
	// test question itself during leave-one-out evaluation.
	ExcludeIdxs []int

	// Neighbors is how many similar questions to retrieve. Defaults to 10.
	Neighbors int

	// TopK caps the fused ranking. Defaults to 10.
	TopK int

	// RRFK is the fusion stabilizer constant; 0 uses the default (60).
	RRFK int

	// MinSimilarity drops neighbors below the cosine threshold.
	MinSimilarity float32

	// UseLLM asks the chat model for a second candidate list and fuses it
	// with retrieval. Ignored when the toolkit has no LLM client.
	UseLLM bool
}

// Recommendation is a fused, best-first API ranking with its provenance.
type Recommendation struct {
	APIs      []search.RankedAPI
	Neighbors []search.Hit

	// LLMSuggestions is the chat model's raw ranked list, empty when the LLM
	// was not consulted.
	LLMSuggestions []string
}

// Recommend produces a ranked API list for a free-text programming question.
func (t *Toolkit) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("question is required")
	}
	neighbors := req.Neighbors
	if neighbors <= 0 {
		neighbors = 10
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	vec, err := t.enc.EncodeText(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("encode question: %w", err)
	}

	hits, err := search.KNN(ctx, t.pool, search.Query{
		Schema:   t.schema,
		Model:    t.enc.Model(),
		QueryVec: vec,
		Limit:    neighbors,
		Options: search.Options{
			Datasets:      req.Datasets,
			ExcludeIdxs:   req.ExcludeIdxs,
			MinSimilarity: req.MinSimilarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("neighbor search: %w", err)
	}

	retrieved := t.rankFromNeighbors(hits)

	rec := &Recommendation{Neighbors: hits}
	lists := [][]string{retrieved}

	if req.UseLLM && t.llm != nil {
		suggested, err := t.llm.SuggestAPIs(ctx, req.Question, topK)
		if err != nil {
			// Retrieval alone still yields a usable ranking.
			t.logger.Warn("llm suggestion failed", "error", err)
		} else {
			rec.LLMSuggestions = suggested
			lists = append(lists, suggested)
		}
	}

	fused := search.FuseRRF(lists, search.RRFOptions{K: req.RRFK})
	if len(fused) > topK {
		fused = fused[:topK]
	}
	rec.APIs = fused
	return rec, nil
}

// rankFromNeighbors flattens neighbor gold answers into one ranked identifier
// list, best neighbor first. Duplicates keep their first (best) position via
// the fusion layer's per-list dedupe.
func (t *Toolkit) rankFromNeighbors(hits []search.Hit) []string {
	var out []string
	for _, h := range hits {
		ds, ok := t.datasets[h.Dataset]
		if !ok {
			t.logger.Warn("neighbor from unloaded dataset", "dataset", h.Dataset, "idx", h.QuestionIdx)
			continue
		}
		rec, ok := ds.ByIdx(h.QuestionIdx)
		if !ok {
			t.logger.Warn("neighbor idx missing from dataset", "dataset", h.Dataset, "idx", h.QuestionIdx)
			continue
		}
		for _, api := range rec.Answer {
			out = append(out, api.String())
		}
	}
	return out
}

// EnqueueMissing queues embedding tasks for every dataset question without a
// stored vector under the toolkit's encoder model. It returns how many tasks
// were enqueued.
func (t *Toolkit) EnqueueMissing(ctx context.Context, datasetName, reason string) (int, error) {
	ds, ok := t.datasets[datasetName]
	if !ok {
		return 0, fmt.Errorf("unknown dataset %q", datasetName)
	}

	idxs := make([]int, 0, ds.Len())
	for _, r := range ds.Records() {
		idxs = append(idxs, r.Idx)
	}

	model := t.enc.Model()
	missing, err := t.store.FilterMissingQuestions(ctx, datasetName, model, idxs)
	if err != nil {
		return 0, fmt.Errorf("filter missing questions: %w", err)
	}

	for _, idx := range missing {
		if err := t.repo.Enqueue(ctx, datasetName, idx, model, reason); err != nil {
			return 0, fmt.Errorf("enqueue %s/%d: %w", datasetName, idx, err)
		}
	}

	t.logger.Info("enqueued embedding tasks",
		"dataset", datasetName, "model", model, "missing", len(missing), "total", len(idxs))
	return len(missing), nil
}

// Evaluate scores recommendation runs against a dataset's gold answers at the
// given cutoffs. runs[i] is the ranked candidate list for the dataset's i-th
// record.
func Evaluate(ds *dataset.Dataset, runs [][]string, ks []int) (*metrics.MultiK, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is required")
	}
	c, err := metrics.New(runs, ds.GoldAnswers())
	if err != nil {
		return nil, err
	}
	return c.MultipleK(ks)
}
