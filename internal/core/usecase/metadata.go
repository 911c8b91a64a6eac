package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const metadataPromptChars = 4000

var metadataSchema = map[string]any{
	"title":       "document_metadata",
	"description": "Structured metadata extracted from a document",
	"type":        "object",
	"properties": map[string]any{
		"document_date":  map[string]any{"type": "string", "description": "Issue date of the document, YYYY-MM-DD"},
		"correspondent":  map[string]any{"type": "string", "description": "Organisation or person that sent the document"},
		"amount":         map[string]any{"type": "number", "description": "Total amount"},
		"currency":       map[string]any{"type": "string", "description": "ISO 4217 currency code"},
		"invoice_number": map[string]any{"type": "string"},
		"due_date":       map[string]any{"type": "string", "description": "Payment due date, YYYY-MM-DD"},
	},
}

type amountPattern struct {
	re       *regexp.Regexp
	currency string
}

var amountPatterns = []amountPattern{
	{regexp.MustCompile(`€\s*(\d+[.,]\d{2})`), "EUR"},
	{regexp.MustCompile(`(\d+[.,]\d{2})\s*€`), "EUR"},
	{regexp.MustCompile(`\$\s*(\d+[.,]\d{2})`), "USD"},
	{regexp.MustCompile(`(\d+[.,]\d{2})\s*USD`), "USD"},
	{regexp.MustCompile(`£\s*(\d+[.,]\d{2})`), "GBP"},
}

var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Invoice|Rechnung|Factura)\s*(?:No\.?|Nr\.?|#)?\s*:?\s*([A-Z0-9-]+)`),
	regexp.MustCompile(`(?i)(?:Invoice|Rechnung)\s+([A-Z]{2,}\d+)`),
}

// MetadataExtractor pulls dates, sender, amounts and invoice numbers out of
// document text.
type MetadataExtractor struct {
	llm ports.LLMProvider
	now func() time.Time
}

func NewMetadataExtractor(llm ports.LLMProvider) *MetadataExtractor {
	return &MetadataExtractor{llm: llm, now: time.Now}
}

// Extract prefers the model's answer and fills a missing document_date from
// the rules. When the model fails, the rule-based result is returned.
func (x *MetadataExtractor) Extract(ctx context.Context, content string) (map[string]any, domain.Usage) {
	var usage domain.Usage
	slog.Info("extracting_metadata", "content_length", len(content))

	rules := x.extractWithRules(content)
	completion, err := x.llm.CompleteStructured(ctx, metadataPrompt(content), metadataSchema, domain.CompletionOptions{
		Temperature: domain.Temperature(0.1),
	})
	if err != nil {
		slog.Error("metadata_extraction_failed", "error", err)
		return rules, usage
	}
	usage.Add(completion.TokensUsed(), completion.Cost)

	metadata := make(map[string]any, len(completion.Data))
	for key, value := range completion.Data {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			value = s
		}
		metadata[key] = value
	}
	for _, key := range []string{"document_date", "due_date"} {
		if s, ok := metadata[key].(string); ok {
			metadata[key], _ = normalizeDate(s)
		}
	}
	if _, ok := metadata["document_date"]; !ok {
		if date, found := rules["document_date"]; found {
			metadata["document_date"] = date
		}
	}
	slog.Info("metadata_extracted", "fields", len(metadata), "tokens_used", completion.TokensUsed(), "cost", completion.Cost)
	return metadata, usage
}

func (x *MetadataExtractor) extractWithRules(content string) map[string]any {
	metadata := make(map[string]any)
	if date, ok := extractDate(content, x.now()); ok {
		metadata["document_date"] = date
	}
	if amount, currency, ok := extractAmount(content); ok {
		metadata["amount"] = amount
		metadata["currency"] = currency
	}
	if number, ok := extractInvoiceNumber(content); ok {
		metadata["invoice_number"] = number
	}
	return metadata
}

// extractAmount returns the largest amount for the first currency pattern
// that matches at all.
func extractAmount(content string) (float64, string, bool) {
	for _, p := range amountPatterns {
		var (
			found   bool
			largest float64
		)
		for _, match := range p.re.FindAllStringSubmatch(content, -1) {
			amount, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
			if err != nil {
				continue
			}
			if !found || amount > largest {
				largest = amount
				found = true
			}
		}
		if found {
			return largest, p.currency, true
		}
	}
	return 0, "", false
}

func extractInvoiceNumber(content string) (string, bool) {
	for _, re := range invoiceNumberPatterns {
		if match := re.FindStringSubmatch(content); match != nil {
			return match[1], true
		}
	}
	return "", false
}

func metadataPrompt(content string) string {
	return fmt.Sprintf(`Extract metadata from the document below.
Return dates as YYYY-MM-DD. The correspondent is the sender of the document, not a party that is merely mentioned.
Leave out fields that the document does not contain.

Document text:
%s`, truncateRunes(content, metadataPromptChars))
}
