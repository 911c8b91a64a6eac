package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const (
	categoryPromptChars = 2000
	summaryPromptChars  = 6000
)

var defaultDocumentTypes = []string{"invoice", "receipt", "contract", "statement", "letter", "other"}

type Categorizer struct {
	llm ports.LLMProvider
}

func NewCategorizer(llm ports.LLMProvider) *Categorizer {
	return &Categorizer{llm: llm}
}

// Categorize picks a document type name. Existing types are matched
// case-insensitively so the caller reuses them; any other answer is a new
// type suggestion. An empty result means no decision.
func (c *Categorizer) Categorize(ctx context.Context, content string, existing []domain.DocumentType) (string, domain.Usage) {
	var usage domain.Usage
	names := make([]string, 0, len(existing))
	for _, dt := range existing {
		names = append(names, dt.Name)
	}
	if len(names) == 0 {
		names = defaultDocumentTypes
	}

	completion, err := c.llm.Complete(ctx, categoryPrompt(content, names), domain.CompletionOptions{
		Temperature: domain.Temperature(0.1),
		MaxTokens:   50,
	})
	if err != nil {
		slog.Error("categorization_failed", "error", err)
		return "", usage
	}
	usage.Add(completion.TokensUsed(), completion.Cost)

	answer := strings.Trim(collapseSpaces(completion.Text), `"'.`)
	if answer == "" {
		return "", usage
	}
	for _, name := range names {
		if strings.EqualFold(name, answer) {
			answer = name
			break
		}
	}
	slog.Info("document_categorized", "document_type", answer)
	return answer, usage
}

func categoryPrompt(content string, types []string) string {
	return fmt.Sprintf(`Assign the document below to one of these document types:
%s

If none fits, suggest a new, fitting type.

Document text:
%s

Answer with the document type only.`, strings.Join(types, ", "), truncateRunes(content, categoryPromptChars))
}

type SummaryConfig struct {
	MaxLength int
	// Style is one of concise, detailed or bullet_points.
	Style string
}

type Summarizer struct {
	llm ports.LLMProvider
	cfg SummaryConfig
}

func NewSummarizer(llm ports.LLMProvider, cfg SummaryConfig) *Summarizer {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 500
	}
	return &Summarizer{llm: llm, cfg: cfg}
}

func (s *Summarizer) Summarize(ctx context.Context, content string) (string, domain.Usage) {
	var usage domain.Usage
	completion, err := s.llm.Complete(ctx, summaryPrompt(content, s.cfg), domain.CompletionOptions{
		Temperature: domain.Temperature(0.3),
		MaxTokens:   s.cfg.MaxLength,
	})
	if err != nil {
		slog.Error("summarization_failed", "error", err)
		return "", usage
	}
	usage.Add(completion.TokensUsed(), completion.Cost)
	return truncateRunes(strings.TrimSpace(completion.Text), s.cfg.MaxLength), usage
}

func summaryPrompt(content string, cfg SummaryConfig) string {
	var instruction string
	switch cfg.Style {
	case "detailed":
		instruction = "a detailed summary that covers every important point"
	case "bullet_points":
		instruction = "a summary as bullet points"
	default:
		instruction = "a brief summary"
	}
	return fmt.Sprintf(`Write %s of the document below in the document's language.
Use at most %d characters.

Document text:
%s`, instruction, cfg.MaxLength, truncateRunes(content, summaryPromptChars))
}
