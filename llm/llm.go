// Package llm wraps chat-completion queries against any OpenAI-compatible
// endpoint. Configuration is an explicit value passed to New; there is no
// process-wide client state.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// Timeout bounds a single HTTP request. Defaults to 60s.
	Timeout time.Duration

	// MaxRetries bounds retry attempts on transient failures (429, 408,
	// 5xx). Defaults to 3; 0 keeps the default, negative disables retries.
	MaxRetries int

	// BackoffBase is the first retry delay, doubled per attempt.
	// Defaults to 1s.
	BackoffBase time.Duration

	Temperature float32
}

// Usage accumulates token accounting across all queries of one client.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Response is a single completed query.
type Response struct {
	Text  string
	Usage Usage
}

// Client issues chat queries. Safe for concurrent use.
type Client struct {
	client *openai.Client
	cfg    Config

	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}

	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		openaiCfg.BaseURL = cfg.BaseURL
	}
	openaiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client: openai.NewClientWithConfig(openaiCfg),
		cfg:    cfg,
	}, nil
}

// Query sends one system+user exchange and returns the assistant text.
// Transient provider errors are retried with exponential backoff; the
// context bounds the whole call including backoff sleeps.
func (c *Client) Query(ctx context.Context, system, user string) (*Response, error) {
	if strings.TrimSpace(user) == "" {
		return nil, fmt.Errorf("user prompt is required")
	}

	var msgs []openai.ChatCompletionMessage
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			c.promptTokens.Add(int64(resp.Usage.PromptTokens))
			c.completionTokens.Add(int64(resp.Usage.CompletionTokens))
			if len(resp.Choices) == 0 {
				return nil, fmt.Errorf("provider returned no choices")
			}
			return &Response{
				Text: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     int64(resp.Usage.PromptTokens),
					CompletionTokens: int64(resp.Usage.CompletionTokens),
					TotalTokens:      int64(resp.Usage.TotalTokens),
				},
			}, nil
		}

		lastErr = err
		if attempt >= c.cfg.MaxRetries || !isRetryable(err) {
			return nil, fmt.Errorf("chat completion failed after %d attempts: %w", attempt+1, lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(expBackoff(c.cfg.BackoffBase, attempt+1)):
		}
	}
}

// TotalUsage reports tokens accumulated by this client since creation.
func (c *Client) TotalUsage() Usage {
	p := c.promptTokens.Load()
	comp := c.completionTokens.Load()
	return Usage{
		PromptTokens:     p,
		CompletionTokens: comp,
		TotalTokens:      p + comp,
	}
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode == 408 {
			return true
		}
		return apiErr.HTTPStatusCode >= 500 && apiErr.HTTPStatusCode <= 599
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode == 408 {
			return true
		}
		return reqErr.HTTPStatusCode >= 500 && reqErr.HTTPStatusCode <= 599
	}
	// Network-level errors (timeouts, resets) come through untyped.
	return true
}

func expBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	const maxBackoff = 30 * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
