package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

// CachingProvider serves repeated identical requests from a CompletionCache.
// Cache hits report zero tokens and zero cost.
type CachingProvider struct {
	next  ports.LLMProvider
	cache ports.CompletionCache
	ttl   time.Duration
}

func NewCachingProvider(next ports.LLMProvider, cache ports.CompletionCache, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachingProvider{next: next, cache: cache, ttl: ttl}
}

func (p *CachingProvider) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	key := p.key("complete", prompt, nil, opts)
	var cached domain.Completion
	if p.lookup(ctx, key, &cached) {
		cached.InputTokens, cached.OutputTokens, cached.Cost = 0, 0, 0
		return cached, nil
	}

	out, err := p.next.Complete(ctx, prompt, opts)
	if err != nil {
		return out, err
	}
	p.store(ctx, key, out)
	return out, nil
}

func (p *CachingProvider) CompleteStructured(ctx context.Context, prompt string, schema map[string]any, opts domain.CompletionOptions) (domain.StructuredCompletion, error) {
	key := p.key("structured", prompt, schema, opts)
	var cached domain.StructuredCompletion
	if p.lookup(ctx, key, &cached) {
		cached.InputTokens, cached.OutputTokens, cached.Cost = 0, 0, 0
		if cached.Data == nil {
			cached.Data = map[string]any{}
		}
		return cached, nil
	}

	out, err := p.next.CompleteStructured(ctx, prompt, schema, opts)
	if err != nil {
		return out, err
	}
	p.store(ctx, key, out)
	return out, nil
}

func (p *CachingProvider) CountTokens(text string) int { return p.next.CountTokens(text) }

func (p *CachingProvider) EstimateCost(in, out int) float64 { return p.next.EstimateCost(in, out) }

func (p *CachingProvider) Model() string { return p.next.Model() }

func (p *CachingProvider) key(kind, prompt string, schema map[string]any, opts domain.CompletionOptions) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(p.next.Model()))
	h.Write([]byte{0})
	if opts.Temperature != nil {
		h.Write([]byte(strconv.FormatFloat(*opts.Temperature, 'f', -1, 64)))
	}
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(opts.MaxTokens)))
	h.Write([]byte{0})
	h.Write([]byte(opts.System))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	if schema != nil {
		raw, _ := json.Marshal(schema)
		h.Write([]byte{0})
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (p *CachingProvider) lookup(ctx context.Context, key string, out any) bool {
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("llm_cache_read_failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		slog.Warn("llm_cache_decode_failed", "error", err)
		return false
	}
	slog.Debug("llm_cache_hit", "model", p.next.Model())
	return true
}

func (p *CachingProvider) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
		slog.Warn("llm_cache_write_failed", "error", err)
	}
}
