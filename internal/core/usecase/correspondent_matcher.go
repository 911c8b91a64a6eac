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
	correspondentPreviewChars = 1500
	correspondentListLimit    = 50
)

// CorrespondentMatcher maps an extracted sender name onto an existing
// correspondent name for the staged pipeline. A nil LLM disables the
// model-assisted step.
type CorrespondentMatcher struct {
	llm ports.LLMProvider
}

func NewCorrespondentMatcher(llm ports.LLMProvider) *CorrespondentMatcher {
	return &CorrespondentMatcher{llm: llm}
}

// Match returns the name to reconcile: an existing correspondent's name when
// one fits, otherwise the extracted name. It never fails; a model error
// falls back to the rule-based result.
func (m *CorrespondentMatcher) Match(ctx context.Context, content, extracted string, existing []domain.Correspondent) (string, domain.Usage) {
	var usage domain.Usage
	extracted = strings.TrimSpace(extracted)
	if extracted == "" || len(existing) == 0 {
		return extracted, usage
	}

	if name, ok := matchCorrespondentByRules(extracted, existing); ok {
		return name, usage
	}
	if m.llm == nil {
		slog.Info("correspondent_no_match", "using_new", extracted)
		return extracted, usage
	}

	completion, err := m.llm.Complete(ctx, correspondentPrompt(content, extracted, existing), domain.CompletionOptions{
		Temperature: domain.Temperature(0.1),
		MaxTokens:   200,
	})
	if err != nil {
		slog.Error("correspondent_matching_failed", "extracted", extracted, "error", err)
		return extracted, usage
	}
	usage.Add(completion.TokensUsed(), completion.Cost)

	answer := strings.Trim(strings.TrimSpace(completion.Text), `"'`)
	if answer == "" {
		return extracted, usage
	}
	lowered := strings.ToLower(answer)
	if lowered == "new" {
		slog.Info("correspondent_new", "name", extracted, "reason", "llm_suggested_new")
		return extracted, usage
	}
	if name, ok := matchAnswerToExisting(answer, existing); ok {
		slog.Info("correspondent_matched", "extracted", extracted, "matched_to", name, "reason", "llm_match")
		return name, usage
	}
	if strings.Contains(lowered, "new") || strings.Contains(lowered, "create") {
		slog.Info("correspondent_new", "name", extracted, "reason", "llm_suggested_new")
	}
	return extracted, usage
}

// answerSlack bounds how much longer than a known name an answer may be and
// still count as naming it ("Stadtwerke München GmbH" for "Stadtwerke München").
const answerSlack = 8

// matchAnswerToExisting prefers an exact case-insensitive name. Containment
// only counts when answer and name are of similar length, so a short name
// such as "AG" cannot claim a free-text answer.
func matchAnswerToExisting(answer string, existing []domain.Correspondent) (string, bool) {
	answer = strings.TrimSpace(answer)
	for _, c := range existing {
		if strings.EqualFold(strings.TrimSpace(c.Name), answer) {
			return c.Name, true
		}
	}
	lowered := strings.ToLower(answer)
	answerLen := utf8.RuneCountInString(lowered)
	for _, c := range existing {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		nameLen := utf8.RuneCountInString(name)
		if name == "" || answerLen > nameLen+answerSlack {
			continue
		}
		if strings.Contains(lowered, name) || (answerLen >= 3 && strings.Contains(name, lowered)) {
			return c.Name, true
		}
	}
	return "", false
}

func matchCorrespondentByRules(extracted string, existing []domain.Correspondent) (string, bool) {
	needle := strings.ToLower(extracted)
	for _, c := range existing {
		if strings.ToLower(c.Name) == needle {
			slog.Info("correspondent_exact_match", "matched_to", c.Name)
			return c.Name, true
		}
	}
	for _, c := range existing {
		name := strings.ToLower(c.Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			slog.Info("correspondent_fuzzy_match", "matched_to", c.Name)
			return c.Name, true
		}
	}

	words := wordSet(needle)
	if len(words) == 0 {
		return "", false
	}
	for _, c := range existing {
		overlap := 0
		for w := range wordSet(strings.ToLower(c.Name)) {
			if _, ok := words[w]; ok {
				overlap++
			}
		}
		if float64(overlap)/float64(len(words)) > 0.5 {
			slog.Info("correspondent_word_match", "matched_to", c.Name, "overlap", overlap)
			return c.Name, true
		}
	}
	return "", false
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func correspondentPrompt(content, extracted string, existing []domain.Correspondent) string {
	var list strings.Builder
	for i, c := range existing {
		if i == correspondentListLimit {
			break
		}
		fmt.Fprintf(&list, "- %s\n", c.Name)
	}
	return fmt.Sprintf(`You match document senders against a list of known correspondents.

Document text (OCR):
%s

Sender name extracted from the document:
"%s"

Known correspondents:
%s
Consider spelling variants, abbreviations and legal-form suffixes (for example "EnBW AG" and "EnBW Energie Baden-Wuerttemberg AG").
If one of the known correspondents is the sender, answer with its name exactly as listed.
Otherwise answer with NEW.

Answer with the name only.`, truncateRunes(content, correspondentPreviewChars), extracted, list.String())
}
