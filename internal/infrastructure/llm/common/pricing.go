// Package common holds provider-independent LLM gateway helpers: pricing,
// token heuristics, temperature policy, response decoding and decorators.
package common

import (
	"strings"
	"unicode/utf8"
)

// Price is USD per one million tokens.
type Price struct {
	Input  float64
	Output float64
}

type PriceTable struct {
	Prices  map[string]Price
	Default Price
}

// Lookup matches the model exactly, then by the longest known prefix, and
// falls back to the table default.
func (t PriceTable) Lookup(model string) Price {
	model = strings.ToLower(strings.TrimSpace(model))
	if p, ok := t.Prices[model]; ok {
		return p
	}
	best := ""
	for name := range t.Prices {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return t.Prices[best]
	}
	return t.Default
}

func (t PriceTable) EstimateCost(model string, inputTokens, outputTokens int) float64 {
	p := t.Lookup(model)
	return float64(inputTokens)/1_000_000*p.Input + float64(outputTokens)/1_000_000*p.Output
}

var OpenAIPrices = PriceTable{
	Prices: map[string]Price{
		"gpt-4-turbo-preview": {Input: 10, Output: 30},
		"gpt-4":               {Input: 30, Output: 60},
		"gpt-3.5-turbo":       {Input: 0.5, Output: 1.5},
		"gpt-3.5-turbo-16k":   {Input: 3, Output: 4},
	},
	Default: Price{Input: 10, Output: 30},
}

var AnthropicPrices = PriceTable{
	Prices: map[string]Price{
		"claude-3-opus":   {Input: 15, Output: 75},
		"claude-3-sonnet": {Input: 3, Output: 15},
		"claude-3-haiku":  {Input: 0.25, Output: 1.25},
	},
	Default: Price{Input: 3, Output: 15},
}

var GeminiPrices = PriceTable{
	Prices: map[string]Price{
		"gemini-1.5-pro":   {Input: 1.25, Output: 5},
		"gemini-1.5-flash": {Input: 0.075, Output: 0.3},
		"gemini-2.0-flash": {Input: 0.1, Output: 0.4},
	},
	Default: Price{Input: 0.1, Output: 0.4},
}

// LocalPrices is used for self-hosted models.
var LocalPrices = PriceTable{}

// ApproxTokens is the characters/4 heuristic used when no tokenizer exists
// for a model.
func ApproxTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}
