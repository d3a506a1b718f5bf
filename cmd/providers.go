package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/ai"
	"github.com/spigell/resume-analyzer/internal/ai/claude"
	"github.com/spigell/resume-analyzer/internal/ai/gemini"
	"github.com/spigell/resume-analyzer/internal/ai/kimi"
	"github.com/spigell/resume-analyzer/internal/logger"
	"github.com/spigell/resume-analyzer/internal/secrets"
)

const (
	providerKimi      = "kimi"
	providerGemini    = "gemini"
	providerAnthropic = "anthropic"
)

// newCompleter builds the client of the configured provider. Every provider
// refuses to start without an API key.
func newCompleter(ctx context.Context, cfg *Config, l *zap.Logger) (ai.Completer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = providerKimi
	}

	switch provider {
	case providerKimi:
		apiKey, err := loadKey("kimi api key", cfg.Kimi, "KIMI_API_KEY")
		if err != nil {
			return nil, err
		}

		clientLogger := logger.WithProvider(l, provider, cfg.Kimi.Model)
		return kimi.New(apiKey,
			kimi.WithEndpoint(cfg.Kimi.Endpoint),
			kimi.WithModel(cfg.Kimi.Model),
			kimi.WithTemperature(temperature(cfg.Kimi.Temperature, kimi.DefaultTemperature)),
			kimi.WithLogger(clientLogger),
			kimi.WithHTTPClient(kimi.NewHTTPClient(cfg.MaxAttempts, cfg.Timeout, clientLogger)),
		)
	case providerGemini:
		apiKey, err := loadKey("gemini api key", cfg.Gemini, "GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}

		clientLogger := logger.WithProvider(l, provider, cfg.Gemini.Model).With(
			zap.Int("ai_retry_attempts", cfg.MaxAttempts),
		)
		return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.MaxAttempts, clientLogger)
	case providerAnthropic:
		apiKey, err := loadKey("anthropic api key", cfg.Anthropic, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}

		return claude.New(claude.Config{
			APIKey:      apiKey,
			Model:       cfg.Anthropic.Model,
			Temperature: cfg.Anthropic.Temperature,
			MaxAttempts: cfg.MaxAttempts,
			Timeout:     cfg.Timeout,
			BaseURL:     cfg.Anthropic.Endpoint,
		}, logger.WithProvider(l, provider, cfg.Anthropic.Model))
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func loadKey(name string, cfg *ProviderConfig, env string) (string, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  name,
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   env,
	})
	if err != nil {
		return "", fmt.Errorf("%w (or use the api-key-file key in the configuration file)", err)
	}
	return key, nil
}

// temperature falls back only when the key is unset, so an explicit 0 is kept.
func temperature(configured *float64, fallback float64) float64 {
	if configured == nil {
		return fallback
	}
	return *configured
}
