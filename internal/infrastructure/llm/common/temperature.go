package common

import (
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

var DefaultRestrictedPrefixes = []string{"o1", "gpt-5"}

// TemperaturePolicy lists model-name prefixes that reject a non-default
// sampling temperature.
type TemperaturePolicy struct {
	RestrictedPrefixes []string
}

func (p TemperaturePolicy) Supports(model string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range p.RestrictedPrefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" && strings.HasPrefix(model, prefix) {
			return false
		}
	}
	return true
}

// Resolve returns the temperature to send, or nil when it must be omitted.
func (p TemperaturePolicy) Resolve(model string, opts domain.CompletionOptions, fallback float64) *float64 {
	if !p.Supports(model) {
		return nil
	}
	if opts.Temperature != nil {
		return domain.Temperature(*opts.Temperature)
	}
	return domain.Temperature(fallback)
}
