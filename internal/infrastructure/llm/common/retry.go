package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
)

// RetryingProvider re-issues failed generations with a doubling delay and
// returns the last error once attempts are exhausted.
type RetryingProvider struct {
	next      ports.LLMProvider
	attempts  int
	baseDelay time.Duration
	sleep     func(context.Context, time.Duration) error
}

func NewRetryingProvider(next ports.LLMProvider, attempts int, baseDelay time.Duration) *RetryingProvider {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}
	return &RetryingProvider{
		next:      next,
		attempts:  attempts,
		baseDelay: baseDelay,
		sleep:     sleepContext,
	}
}

func (p *RetryingProvider) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	return generateWithRetry(ctx, p, "complete", func(ctx context.Context) (domain.Completion, error) {
		return p.next.Complete(ctx, prompt, opts)
	})
}

func (p *RetryingProvider) CompleteStructured(ctx context.Context, prompt string, schema map[string]any, opts domain.CompletionOptions) (domain.StructuredCompletion, error) {
	return generateWithRetry(ctx, p, "complete_structured", func(ctx context.Context) (domain.StructuredCompletion, error) {
		return p.next.CompleteStructured(ctx, prompt, schema, opts)
	})
}

func (p *RetryingProvider) CountTokens(text string) int { return p.next.CountTokens(text) }

func (p *RetryingProvider) EstimateCost(in, out int) float64 { return p.next.EstimateCost(in, out) }

func (p *RetryingProvider) Model() string { return p.next.Model() }

func generateWithRetry[T any](ctx context.Context, p *RetryingProvider, operation string, call func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	delay := p.baseDelay
	for attempt := 1; attempt <= p.attempts; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || attempt == p.attempts {
			break
		}

		slog.Warn("llm_retry_attempt",
			"operation", operation,
			"model", p.next.Model(),
			"attempt", attempt,
			"max_attempts", p.attempts,
			"backoff_ms", delay.Milliseconds(),
			"error", err,
		)
		if err := p.sleep(ctx, delay); err != nil {
			break
		}
		delay *= 2
	}
	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
