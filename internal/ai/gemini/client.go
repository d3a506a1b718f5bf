package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/utils"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = float32(0.7)
	DefaultMaxAttempts = 3

	baseBackoff = time.Second
	maxBackoff  = 10 * time.Second
)

var retryableCodes = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (g genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := g.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator sends analysis prompts to Gemini through single-turn chat sessions.
type Generator struct {
	chats       chatCreator
	model       string
	temperature float32
	maxRetries  int
	logger      *zap.Logger
	// pause spaces transient retries, wait holds off a rate limit.
	pause func(ctx context.Context, d time.Duration) error
	wait  func(ctx context.Context, d time.Duration) error
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
// maxAttempts bounds the requests made for transient failures.
func NewGenerator(ctx context.Context, apiKey, model string, maxAttempts int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(genaiChats{chats: client.Chats}, model, maxAttempts, logger), nil
}

func newGenerator(chats chatCreator, model string, maxAttempts int, logger *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:       chats,
		model:       model,
		temperature: DefaultTemperature,
		maxRetries:  maxAttempts,
		logger:      logger,
		pause:       utils.WaitFor,
		wait:        utils.WaitFor,
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Complete sends the prompt with the system instruction and returns the reply
// text. Transient errors are retried with exponential backoff; a rate limit
// that outlasts them is waited out once before *ai.RateLimitError is returned.
func (g *Generator) Complete(ctx context.Context, system, prompt string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	output, err := g.completeWithRetries(ctx, system, prompt)
	if err == nil {
		return output, nil
	}

	apiErr, ok := asAPIError(err)
	if !ok || apiErr.Code != http.StatusTooManyRequests {
		return "", err
	}

	retryAfter := retryDelay(apiErr)
	g.logger.Warn("rate limited, waiting before one more attempt", zap.Duration("retry_after", retryAfter))

	if err := g.wait(ctx, retryAfter); err != nil {
		return "", fmt.Errorf("waiting out rate limit: %w", err)
	}

	output, err = g.send(ctx, system, prompt)
	if err == nil {
		return output, nil
	}

	if apiErr, ok := asAPIError(err); ok && apiErr.Code == http.StatusTooManyRequests {
		return "", &ai.RateLimitError{RetryAfter: retryDelay(apiErr), Err: err}
	}

	return "", err
}

func (g *Generator) completeWithRetries(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		output, err := g.send(ctx, system, prompt)
		if err == nil {
			return output, nil
		}
		lastErr = err

		if !isTransient(err) || attempt == g.maxRetries || ctx.Err() != nil {
			break
		}

		delay := backoff(attempt)
		g.logger.Debug("retrying gemini request",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := g.pause(ctx, delay); err != nil {
			return "", fmt.Errorf("waiting before retry: %w", err)
		}
	}

	return "", lastErr
}

func (g *Generator) send(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	}

	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	g.logger.Debug("make request", zap.String("model", g.model))

	resp, err := chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return replyText(resp)
}

func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ai.ErrMalformedResponse)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", fmt.Errorf("%w: gemini api returned empty response", ai.ErrMalformedResponse)
	}

	return output, nil
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}

	return genai.APIError{}, false
}

func isTransient(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	_, retry := retryableCodes[apiErr.Code]
	return retry
}

func backoff(attempt int) time.Duration {
	delay := baseBackoff << (attempt - 1)
	if delay <= 0 || delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// retryDelay reads google.rpc.RetryInfo from the error details, e.g.
// {"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"}.
func retryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		kind, _ := detail["@type"].(string)
		if !strings.HasSuffix(kind, "RetryInfo") {
			continue
		}

		raw, _ := detail["retryDelay"].(string)
		delay, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if delay < 0 {
			return 0
		}
		return delay
	}

	return ai.DefaultRetryAfter
}
