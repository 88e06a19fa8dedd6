package encoder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/doujins-org/apireckit/internal/normalize"
	"github.com/doujins-org/apireckit/internal/textnormalize"
)

type OpenAICompatibleConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int // optional; 0 means provider default
	Timeout    time.Duration

	// BatchSize caps how many texts go into one embedding request.
	// Defaults to 25.
	BatchSize int

	// MaxConcurrent bounds parallel requests when a batch is split.
	// Defaults to 4.
	MaxConcurrent int
}

// OpenAICompatibleEncoder calls any /embeddings endpoint speaking the OpenAI
// wire format. Question text is normalized before encoding so rankings do
// not depend on punctuation or script variants.
type OpenAICompatibleEncoder struct {
	client        *openai.Client
	model         string
	dimensions    int
	batchSize     int
	maxConcurrent int
}

var _ Encoder = (*OpenAICompatibleEncoder)(nil)

func NewOpenAICompatible(cfg OpenAICompatibleConfig) (*OpenAICompatibleEncoder, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	openaiCfg.BaseURL = cfg.BaseURL
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	openaiCfg.HTTPClient = &http.Client{Timeout: timeout}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 25
	}
	conc := cfg.MaxConcurrent
	if conc <= 0 {
		conc = 4
	}

	return &OpenAICompatibleEncoder{
		client:        openai.NewClientWithConfig(openaiCfg),
		model:         cfg.Model,
		dimensions:    cfg.Dimensions,
		batchSize:     batch,
		maxConcurrent: conc,
	}, nil
}

func (e *OpenAICompatibleEncoder) Model() string   { return e.model }
func (e *OpenAICompatibleEncoder) Dimensions() int { return e.dimensions }

func (e *OpenAICompatibleEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EncodeTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EncodeTexts embeds texts in input order, splitting into provider-sized
// batches that run concurrently.
func (e *OpenAICompatibleEncoder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.encodeBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAICompatibleEncoder) encodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		n := textnormalize.Question(t)
		if n == "" {
			n = t
		}
		input[i] = n
	}

	req := openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, row := range resp.Data {
		vec := make([]float32, len(row.Embedding))
		for j, v := range row.Embedding {
			vec[j] = float32(v)
		}
		normalize.L2NormalizeInPlace(vec)
		out[i] = vec
	}
	return out, nil
}
