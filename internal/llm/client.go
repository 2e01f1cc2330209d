// Package llm wraps the chat model behind a rate-limited, retrying client.
// Rate limiting uses a token bucket sized from requests-per-minute; 429
// responses retry with exponential backoff on top of the bucket, since the
// provider's window and ours never line up exactly.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/spotlens/spotlens/internal/config"
	"github.com/spotlens/spotlens/internal/logger"
)

const systemPrompt = "You are an expert TV media buying analyst. " +
	"Respond with only a JSON object and no other text."

// chatModel is the slice of the model interface the client needs. Tests
// substitute a stub; production wires the openai-backed eino model.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client calls the language model with rate limiting and 429 retries.
type Client struct {
	cm               chatModel
	limiter          *rate.Limiter
	maxRetries       int
	retryDelayBase   time.Duration
	minPromptChars   int
	minResponseChars int
}

// New creates a client backed by an OpenAI-compatible endpoint.
func New(ctx context.Context, cfg config.ModelConfig) (*Client, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newClient(cm, cfg), nil
}

// NewWithModel creates a client over an existing model. Used by tests and
// the offline tooling.
func NewWithModel(cm chatModel, cfg config.ModelConfig) *Client {
	return newClient(cm, cfg)
}

func newClient(cm chatModel, cfg config.ModelConfig) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm < 1 {
		rpm = 1
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}
	delay := cfg.RetryDelayBase
	if delay <= 0 {
		delay = 2 * time.Second
	}
	minPrompt := cfg.MinPromptChars
	if minPrompt <= 0 {
		minPrompt = 100
	}
	minResponse := cfg.MinResponseChars
	if minResponse <= 0 {
		minResponse = 50
	}

	return &Client{
		cm:               cm,
		limiter:          rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		maxRetries:       maxRetries,
		retryDelayBase:   delay,
		minPromptChars:   minPrompt,
		minResponseChars: minResponse,
	}
}

// GenerateInsights sends the analysis prompt and returns the raw response
// text. Prompts below the minimum length are rejected before any API call;
// a too-short prompt means the analysis upstream produced almost nothing,
// and the model would hallucinate to fill the gap. Responses below the
// minimum length are treated as failures for the same reason.
func (c *Client) GenerateInsights(ctx context.Context, prompt string) (string, error) {
	if len(prompt) < c.minPromptChars {
		return "", fmt.Errorf("prompt too short: %d chars, need at least %d", len(prompt), c.minPromptChars)
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("limiter wait error: %w", err)
		}

		resp, err := c.cm.Generate(ctx, messages)
		if err != nil {
			lastErr = err
			if isRateLimited(err) && attempt < c.maxRetries {
				delay := c.retryDelayBase * time.Duration(1<<attempt)
				logger.Warn("Model rate limited, retrying in %v (%d/%d)", delay, attempt+1, c.maxRetries)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(delay):
					continue
				}
			}
			return "", fmt.Errorf("model generate failed: %w", err)
		}

		content := strings.TrimSpace(resp.Content)
		if len(content) < c.minResponseChars {
			lastErr = fmt.Errorf("response too short: %d chars", len(content))
			if attempt < c.maxRetries {
				logger.Warn("Model response too short, retrying (%d/%d)", attempt+1, c.maxRetries)
				continue
			}
			return "", lastErr
		}
		return content, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRateLimited detects provider throttling from the error text; the
// underlying transports do not expose a typed 429.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}
