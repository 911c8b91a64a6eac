package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const (
	agenticTagLimit           = 100
	agenticCorrespondentLimit = 50
	minReasoningLength        = 100
	maxAgenticTitleRunes      = 128
	agenticContentChars       = 12000
)

// agenticSchema is the single tool the model must call. The "title" keyword
// names the tool for providers with function calling.
var agenticSchema = map[string]any{
	"title":       "update_document",
	"description": "Update a document with title, tags, correspondent and extracted data",
	"type":        "object",
	"properties": map[string]any{
		"title": map[string]any{
			"type":        "string",
			"description": "Descriptive document title",
		},
		"tags": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Tag names; reuse existing tags where they fit",
		},
		"correspondent": map[string]any{
			"type":        "string",
			"description": "Company or person that issued the document",
		},
		"document_date": map[string]any{
			"type":        "string",
			"description": "Document date (YYYY-MM-DD)",
		},
		"requires_action": map[string]any{
			"type":        "boolean",
			"description": "True when the document needs follow-up such as payment or signature",
		},
		"reasoning": map[string]any{
			"type":        "string",
			"description": "Explanation of every decision",
		},
		"custom_fields": map[string]any{
			"type":        "object",
			"description": "Structured data extracted from the document",
			"properties": map[string]any{
				"invoice_number":  map[string]any{"type": "string", "description": "Invoice or bill number"},
				"amount":          map[string]any{"type": "number", "description": "Total amount"},
				"currency":        map[string]any{"type": "string", "description": "Currency code (EUR, USD, ...)"},
				"due_date":        map[string]any{"type": "string", "description": "Payment due date (YYYY-MM-DD)"},
				"contract_number": map[string]any{"type": "string", "description": "Contract or customer number"},
				"customer_id":     map[string]any{"type": "string", "description": "Customer ID"},
				"product":         map[string]any{"type": "string", "description": "Main product or service"},
			},
		},
	},
	"required": []string{"title"},
}

// AgenticStrategy asks the model for every decision in one structured call.
type AgenticStrategy struct {
	llm ports.LLMProvider
}

func NewAgenticStrategy(llm ports.LLMProvider) *AgenticStrategy {
	return &AgenticStrategy{llm: llm}
}

func (s *AgenticStrategy) Name() string { return StrategyAgentic }

func (s *AgenticStrategy) Decide(ctx context.Context, in DecisionInput) (domain.Decision, domain.Usage, error) {
	var usage domain.Usage
	prompt := agenticPrompt(in.Content, in.Snapshot.TagNames(), in.Snapshot.Correspondents())

	slog.Info("llm_analyzing_document", "document_id", in.Document.ID, "content_length", len(in.Content))
	completion, err := s.llm.CompleteStructured(ctx, prompt, agenticSchema, domain.CompletionOptions{
		Temperature: domain.Temperature(0.3),
	})
	if err != nil {
		return domain.Decision{}, usage, fmt.Errorf("agentic decision: %w", err)
	}
	usage.Add(completion.TokensUsed(), completion.Cost)

	decision := decodeAgenticDecision(in.Document.ID, completion.Data)
	if n := utf8.RuneCountInString(decision.Reasoning); n < minReasoningLength {
		slog.Warn("insufficient_reasoning", "document_id", in.Document.ID, "reasoning_length", n)
	}
	if decision.Correspondent != "" {
		if _, ok := in.Snapshot.CorrespondentByName(decision.Correspondent); !ok {
			slog.Info("new_correspondent_will_be_created", "document_id", in.Document.ID, "new_name", decision.Correspondent)
		}
	}
	return decision, usage, nil
}

func decodeAgenticDecision(documentID int, data map[string]any) domain.Decision {
	var decision domain.Decision
	if title, ok := data["title"].(string); ok {
		decision.Title = truncateRunes(collapseSpaces(title), maxAgenticTitleRunes)
	}
	switch tags := data["tags"].(type) {
	case []any:
		for _, raw := range tags {
			if tag, ok := raw.(string); ok && strings.TrimSpace(tag) != "" {
				decision.Tags = append(decision.Tags, strings.TrimSpace(tag))
			}
		}
	case []string:
		decision.Tags = append(decision.Tags, tags...)
	}
	if correspondent, ok := data["correspondent"].(string); ok {
		decision.Correspondent = strings.TrimSpace(correspondent)
	}
	if raw, ok := data["document_date"].(string); ok && strings.TrimSpace(raw) != "" {
		if date, valid := normalizeDate(raw); valid {
			decision.DocumentDate = date
		} else {
			slog.Warn("document_date_unparseable", "document_id", documentID, "value", raw)
		}
	}
	if flag, ok := data["requires_action"].(bool); ok {
		decision.RequiresAction = flag
	}
	if reasoning, ok := data["reasoning"].(string); ok {
		decision.Reasoning = strings.TrimSpace(reasoning)
	}
	if fields, ok := data["custom_fields"].(map[string]any); ok && len(fields) > 0 {
		decision.CustomFields = fields
	}
	return decision
}

func agenticPrompt(content string, tags []string, correspondents []domain.Correspondent) string {
	if len(tags) > agenticTagLimit {
		tags = tags[:agenticTagLimit]
	}
	var corrList strings.Builder
	for i, c := range correspondents {
		if i == agenticCorrespondentLimit {
			break
		}
		fmt.Fprintf(&corrList, "  - %s\n", c.Name)
	}

	return fmt.Sprintf(`You are a document processing agent for a document archive.

Read the whole document below, then decide:
1. A meaningful title.
2. Tags: reuse existing tags when they fit the actual content; create new ones only when needed. At most 10, lowercase, hyphens instead of spaces.
3. The correspondent: the company or person that issued or sent the document (letterhead, logo, sender address, stamp). A company that is only mentioned, the recipient, or a product manufacturer is not the correspondent. If an existing correspondent has exactly that name, use it; otherwise write the name as it appears in the document and it will be created.
4. The document date in YYYY-MM-DD.
5. custom_fields with every relevant value (invoice_number, amount, currency, due_date, contract_number, customer_id, product). Amounts as numbers, dates as YYYY-MM-DD.
6. requires_action: true for unpaid invoices, reminders, payment requests, deadlines or contracts awaiting signature; false for informational documents, confirmations and paid invoices.
7. reasoning: explain who sent the document and why, what it is about, why each tag was chosen or created, why requires_action is set as it is, and which values were extracted.

Existing tags:
%s

Existing correspondents:
%s
Document text (OCR):
%s

Call update_document with your decisions and reasoning.`, strings.Join(tags, ", "), corrList.String(), truncateRunes(content, agenticContentChars))
}
