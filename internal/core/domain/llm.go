package domain

// CompletionOptions tunes one LLM call. Nil Temperature means provider default.
type CompletionOptions struct {
	Temperature *float64
	MaxTokens   int
	System      string
}

func Temperature(v float64) *float64 {
	return &v
}

type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Cost         float64
	FinishReason string
}

func (c Completion) TokensUsed() int {
	return c.InputTokens + c.OutputTokens
}

type StructuredCompletion struct {
	Data         map[string]any
	InputTokens  int
	OutputTokens int
	Cost         float64
}

func (c StructuredCompletion) TokensUsed() int {
	return c.InputTokens + c.OutputTokens
}
