// Package factory builds the configured LLM provider with its decorators.
package factory

import (
	"context"
	"fmt"

	"github.com/Kenny1338/better-paperless-ngx/internal/config"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/anthropic"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/common"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/gemini"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/ollama"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/openai"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

// New returns the provider selected by cfg.LLM.Provider. Calls are retried
// per processing.retry_attempts and, when cache is non-nil, served from the
// completion cache first.
func New(ctx context.Context, cfg config.Config, exec *resilience.Executor, cache ports.CompletionCache) (ports.LLMProvider, error) {
	base, err := newBase(ctx, cfg, exec)
	if err != nil {
		return nil, err
	}

	var provider ports.LLMProvider = common.NewRetryingProvider(base, cfg.Processing.RetryAttempts, cfg.Processing.RetryDelay)
	if cache != nil && cfg.Cache.Enabled {
		provider = common.NewCachingProvider(provider, cache, cfg.Cache.TTL)
	}
	return provider, nil
}

func newBase(ctx context.Context, cfg config.Config, exec *resilience.Executor) (ports.LLMProvider, error) {
	p := cfg.Provider()
	switch cfg.LLM.Provider {
	case "openai":
		return openai.New(p.APIKey, p.Model, openai.Options{
			BaseURL:            p.BaseURL,
			Timeout:            cfg.LLM.Timeout,
			ResilienceExecutor: exec,
			Temperature:        p.Temperature,
			MaxTokens:          p.MaxTokens,
			TemperaturePolicy:  common.TemperaturePolicy{RestrictedPrefixes: cfg.LLM.RestrictedTemperaturePrefixes},
		}), nil
	case "anthropic":
		return anthropic.New(p.APIKey, p.Model, anthropic.Options{
			BaseURL:            p.BaseURL,
			Timeout:            cfg.LLM.Timeout,
			ResilienceExecutor: exec,
			Temperature:        p.Temperature,
			MaxTokens:          p.MaxTokens,
		}), nil
	case "ollama":
		return ollama.New(p.BaseURL, p.Model, ollama.Options{
			Timeout:            cfg.LLM.Timeout,
			ResilienceExecutor: exec,
			Temperature:        p.Temperature,
			MaxTokens:          p.MaxTokens,
		}), nil
	case "gemini":
		client, err := gemini.New(ctx, p.APIKey, p.Model, gemini.Options{
			BaseURL:            p.BaseURL,
			Timeout:            cfg.LLM.Timeout,
			ResilienceExecutor: exec,
			Temperature:        p.Temperature,
			MaxTokens:          p.MaxTokens,
		})
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "llm.factory", err)
		}
		return client, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "llm.factory", fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider))
	}
}
