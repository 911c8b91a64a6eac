package common

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// DecodeObject parses a JSON object out of model output that may carry
// markdown fences or prose around it.
func DecodeObject(operation, raw string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &out); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("parse structured output: %w", err))
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
