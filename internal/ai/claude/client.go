package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/utils"
)

const (
	DefaultModel       = "claude-sonnet-4-5"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second
)

// Client asks Claude models through the Messages API.
type Client struct {
	messages    messageCreator
	model       string
	maxTokens   int64
	temperature float64
	logger      *zap.Logger
	wait        func(ctx context.Context, d time.Duration) error
}

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	// Temperature falls back to DefaultTemperature when nil. Zero is kept.
	Temperature *float64
	MaxAttempts int
	Timeout     time.Duration
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// New creates a client. The SDK retries transient failures up to
// MaxAttempts requests in total before Complete sees the error.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.MaxAttempts - 1),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)

	return newClient(&client.Messages, cfg, logger), nil
}

func newClient(messages messageCreator, cfg Config, logger *zap.Logger) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		messages:    messages,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
		wait:        utils.WaitFor,
	}
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Complete returns the text of the first text block of the reply. A 429 left
// after the SDK retries is waited out once; a second one is reported as
// *ai.RateLimitError.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	c.logger.Debug("make request", zap.String("model", c.model))

	message, err := c.messages.New(ctx, params)
	if retryAfter, limited := rateLimited(err); limited {
		c.logger.Warn("rate limited, waiting before one more attempt", zap.Duration("retry_after", retryAfter))

		if err := c.wait(ctx, retryAfter); err != nil {
			return "", fmt.Errorf("waiting out rate limit: %w", err)
		}

		message, err = c.messages.New(ctx, params)
		if retryAfter, limited := rateLimited(err); limited {
			return "", &ai.RateLimitError{RetryAfter: retryAfter, Err: err}
		}
	}
	if err != nil {
		return "", fmt.Errorf("anthropic messages request: %w", err)
	}

	c.logger.Debug("anthropic usage",
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens),
	)

	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}

	return "", fmt.Errorf("%w: no text content in anthropic response", ai.ErrMalformedResponse)
}

func rateLimited(err error) (time.Duration, bool) {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}

	header := ""
	if apiErr.Response != nil {
		header = apiErr.Response.Header.Get("Retry-After")
	}

	return ai.ParseRetryAfter(header, ai.DefaultRetryAfter), true
}
