package domain

import "time"

// Decision is the common shape produced by every decision strategy.
// Values come from an LLM and are untrusted until reconciled.
type Decision struct {
	Title          string
	Tags           []string
	Correspondent  string
	DocumentType   string
	DocumentDate   string
	RequiresAction bool
	Reasoning      string
	CustomFields   map[string]any
	Summary        string
}

// Usage accumulates LLM accounting across calls of one processing pass.
type Usage struct {
	Tokens int
	Cost   float64
}

func (u *Usage) Add(tokens int, cost float64) {
	u.Tokens += tokens
	u.Cost += cost
}

type ProcessingResult struct {
	DocumentID     int            `json:"document_id"`
	Success        bool           `json:"success"`
	Skipped        bool           `json:"skipped,omitempty"`
	Strategy       string         `json:"strategy,omitempty"`
	Title          string         `json:"title,omitempty"`
	Tags           []string       `json:"tags"`
	Correspondent  string         `json:"correspondent,omitempty"`
	DocumentType   string         `json:"document_type,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	Errors         []string       `json:"errors"`
	ProcessingTime time.Duration  `json:"processing_time"`
	TokensUsed     int            `json:"llm_tokens_used"`
	Cost           float64        `json:"llm_cost"`
}

func NewProcessingResult(documentID int, strategy string) ProcessingResult {
	return ProcessingResult{
		DocumentID: documentID,
		Strategy:   strategy,
		Tags:       []string{},
		Metadata:   map[string]any{},
		Errors:     []string{},
	}
}

type BatchSummary struct {
	RunID       string        `json:"run_id"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	TotalTokens int           `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost"`
	AverageTime time.Duration `json:"average_time"`
}
