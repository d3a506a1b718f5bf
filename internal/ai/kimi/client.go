package kimi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/utils"
)

const (
	DefaultEndpoint    = "https://api.moonshot.cn/v1/chat/completions"
	DefaultModel       = "moonshot-v1-8k"
	DefaultTemperature = 0.7
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second

	contentType      = "application/json"
	retryWaitMin     = time.Second
	retryWaitMax     = 10 * time.Second
	errorBodyPreview = 200
)

// retryableStatuses are retried by the transport before the client looks at the response.
var retryableStatuses = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	http        *retryablehttp.Client
	apiKey      string
	endpoint    string
	model       string
	temperature float64
	logger      *zap.Logger
	wait        func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

func WithTemperature(temperature float64) Option {
	return func(c *Client) {
		c.temperature = temperature
	}
}

// WithHTTPClient replaces the retrying transport, see NewHTTPClient.
func WithHTTPClient(client *retryablehttp.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWait replaces the function used to sit out a Retry-After delay.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if wait != nil {
			c.wait = wait
		}
	}
}

// NewHTTPClient returns the transport used by Client: up to maxAttempts
// requests with exponential backoff on 429 and 5xx gateway errors. Once the
// attempts are exhausted the last response is returned as is.
func NewHTTPClient(maxAttempts int, timeout time.Duration, l *zap.Logger) *retryablehttp.Client {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = maxAttempts - 1
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.CheckRetry = retryPolicy
	client.Backoff = cappedBackoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = logger.NewLeveled(l)

	return client
}

// New creates a client. The API key is mandatory.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("kimi api key is required")
	}

	c := &Client{
		apiKey:      apiKey,
		endpoint:    DefaultEndpoint,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		logger:      zap.NewNop(),
		wait:        utils.WaitFor,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = NewHTTPClient(DefaultMaxAttempts, DefaultTimeout, c.logger)
	}

	return c, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatChoice struct {
	Message struct {
		Content string `mapstructure:"content"`
	} `mapstructure:"message"`
}

type chatUsage struct {
	PromptTokens     int `mapstructure:"prompt_tokens"`
	CompletionTokens int `mapstructure:"completion_tokens"`
}

// Complete sends the prompt and returns the generated text. A 429 that
// survives the transport retries is waited out once more according to its
// Retry-After header; a second 429 is reported as *ai.RateLimitError.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return "", err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := ai.ParseRetryAfter(resp.Header.Get("Retry-After"), ai.DefaultRetryAfter)
		discard(resp)

		c.logger.Warn("rate limited, waiting before one more attempt", zap.Duration("retry_after", retryAfter))

		if err := c.wait(ctx, retryAfter); err != nil {
			return "", fmt.Errorf("waiting out rate limit: %w", err)
		}

		resp, err = c.post(ctx, payload)
		if err != nil {
			return "", err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &ai.RateLimitError{
			RetryAfter: ai.ParseRetryAfter(resp.Header.Get("Retry-After"), ai.DefaultRetryAfter),
			Err:        fmt.Errorf("bad status: %s", resp.Status),
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(string(body), errorBodyPreview))
	}

	return c.parseReply(body)
}

func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("make request", zap.String("url", c.endpoint))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request: %w", err)
	}

	return resp, nil
}

// parseReply pulls choices[0].message.content out of a chat completion body.
func (c *Client) parseReply(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	choices, ok := raw["choices"].([]any)
	if !ok || len(choices) == 0 {
		if apiErr, ok := raw["error"].(map[string]any); ok {
			return "", fmt.Errorf("%w: api error: %v", ai.ErrMalformedResponse, apiErr["message"])
		}
		return "", fmt.Errorf("%w: no choices", ai.ErrMalformedResponse)
	}

	var first chatChoice
	if err := mapstructure.Decode(choices[0], &first); err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	content := strings.TrimSpace(first.Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty message content", ai.ErrMalformedResponse)
	}

	var usage chatUsage
	if err := mapstructure.Decode(raw["usage"], &usage); err == nil {
		c.logger.Debug("chat completion usage",
			zap.Int("prompt_tokens", usage.PromptTokens),
			zap.Int("completion_tokens", usage.CompletionTokens),
		)
	}

	return content, nil
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || ctx.Err() != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	_, retry := retryableStatuses[resp.StatusCode]
	return retry, nil
}

// cappedBackoff is the library's exponential backoff, which honors
// Retry-After, bounded by the configured maximum wait.
func cappedBackoff(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
	wait := retryablehttp.DefaultBackoff(minWait, maxWait, attempt, resp)
	if wait > maxWait {
		return maxWait
	}
	return wait
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
