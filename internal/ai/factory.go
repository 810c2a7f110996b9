// factory.go - Builds the provider chain from configuration

package ai

import (
	"context"
	"fmt"

	"github.com/bosocmputer/product_identify/configs"
	"github.com/bosocmputer/product_identify/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

// CreateOrchestrator creates Gemini as primary and, when a Mistral key is
// configured, Mistral as the fallback.
func CreateOrchestrator(ctx context.Context, cfg *configs.Config) (*Orchestrator, func() error, error) {
	primary, err := NewGeminiProvider(ctx, GeminiConfig{
		APIKey:        cfg.GeminiAPIKey,
		Model:         cfg.GeminiModel,
		SingleTimeout: cfg.PrimaryTimeout,
		MultiTimeout:  cfg.MultiTimeout,
		Limiter:       ratelimit.PerMinute(cfg.GeminiRPM),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("primary provider: %w", err)
	}
	logrus.Infof("🔵 Primary provider: Gemini (model: %s, rpm: %d)", cfg.GeminiModel, cfg.GeminiRPM)

	var secondary Provider
	if cfg.MistralAPIKey != "" {
		m, err := NewMistralProvider(MistralConfig{
			APIKey:        cfg.MistralAPIKey,
			Model:         cfg.MistralModel,
			BaseURL:       cfg.MistralBaseURL,
			SingleTimeout: cfg.PrimaryTimeout,
			MultiTimeout:  cfg.MultiTimeout,
		})
		if err != nil {
			primary.Close()
			return nil, nil, fmt.Errorf("secondary provider: %w", err)
		}
		secondary = m
		logrus.Infof("✅ Fallback provider configured: Mistral (model: %s)", cfg.MistralModel)
	} else {
		logrus.Warn("⚠️  MISTRAL_API_KEY not set, running without a fallback provider")
	}

	orch, err := NewOrchestrator(primary, secondary)
	if err != nil {
		primary.Close()
		return nil, nil, err
	}
	return orch, primary.Close, nil
}
