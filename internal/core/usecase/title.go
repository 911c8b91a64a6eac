package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const (
	titlePromptChars = 2000
	maxTitleRunes    = 100
)

var titlePrefixes = []string{"Title:", "Titel:", "Document:", "Dokument:"}

type TitleGenerator struct {
	llm ports.LLMProvider
	now func() time.Time
}

func NewTitleGenerator(llm ports.LLMProvider) *TitleGenerator {
	return &TitleGenerator{llm: llm, now: time.Now}
}

// Generate asks the model for a title. On failure or an empty answer it
// derives one from the first line of content.
func (g *TitleGenerator) Generate(ctx context.Context, content string, tags []string, documentType string) (string, domain.Usage) {
	var usage domain.Usage
	slog.Info("generating_title", "content_length", len(content))

	completion, err := g.llm.Complete(ctx, titlePrompt(content, tags, documentType), domain.CompletionOptions{
		Temperature: domain.Temperature(0.3),
		MaxTokens:   100,
	})
	if err != nil {
		slog.Error("title_generation_failed", "error", err)
		return g.fallback(content), usage
	}
	usage.Add(completion.TokensUsed(), completion.Cost)

	title := cleanTitle(completion.Text)
	if title == "" {
		return g.fallback(content), usage
	}
	slog.Info("title_generated", "title", title, "tokens_used", completion.TokensUsed(), "cost", completion.Cost)
	return title, usage
}

func (g *TitleGenerator) fallback(content string) string {
	firstLine, _, _ := strings.Cut(content, "\n")
	firstLine = strings.TrimSpace(firstLine)
	if n := utf8.RuneCountInString(firstLine); n > 10 && n < maxTitleRunes {
		return firstLine
	}
	return "Document " + g.now().Format("2006-01-02")
}

func cleanTitle(raw string) string {
	title := strings.Trim(strings.TrimSpace(raw), `"'`)
	for _, prefix := range titlePrefixes {
		if strings.HasPrefix(title, prefix) {
			title = strings.TrimSpace(title[len(prefix):])
		}
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = truncateRunes(title, maxTitleRunes-3) + "..."
	}
	return collapseSpaces(title)
}

func titlePrompt(content string, tags []string, documentType string) string {
	var hints strings.Builder
	if len(tags) > 0 {
		fmt.Fprintf(&hints, "Tags: %s\n", strings.Join(tags, ", "))
	}
	if documentType != "" {
		fmt.Fprintf(&hints, "Document type: %s\n", documentType)
	}
	return fmt.Sprintf(`Write a short, descriptive title for the document below.
Use the language of the document. Include the sender and the subject, and the period or date when it matters.
Keep it under 80 characters. Answer with the title only, without quotes.

%s
Document text:
%s`, hints.String(), truncateRunes(content, titlePromptChars))
}
