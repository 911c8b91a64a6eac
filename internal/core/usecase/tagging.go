package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const (
	tagPromptChars = 3000
	promptTagLimit = 100
)

// TagRule adds Tags to every document whose content matches Pattern.
type TagRule struct {
	Pattern *regexp.Regexp
	Tags    []string
}

func DefaultTagRules() []TagRule {
	return []TagRule{
		{Pattern: regexp.MustCompile(`(?i)\b(invoice|rechnung|factura)\b`), Tags: []string{"invoice", "financial"}},
		{Pattern: regexp.MustCompile(`(?i)\b(receipt|quittung|bon)\b`), Tags: []string{"receipt", "financial"}},
		{Pattern: regexp.MustCompile(`(?i)\b(bank statement|kontoauszug)\b`), Tags: []string{"bank-statement", "financial"}},
		{Pattern: regexp.MustCompile(`(?i)\b(contract|vertrag)\b`), Tags: []string{"contract"}},
		{Pattern: regexp.MustCompile(`(?i)\b(insurance|versicherung)\b`), Tags: []string{"insurance"}},
		{Pattern: regexp.MustCompile(`(?i)\b(tax|steuer|finanzamt)\b`), Tags: []string{"tax", "important"}},
		{Pattern: regexp.MustCompile(`(?i)\b(electricity|strom|energie)\b`), Tags: []string{"utility", "electricity"}},
		{Pattern: regexp.MustCompile(`(?i)\b(water|wasser)\b`), Tags: []string{"utility", "water"}},
	}
}

type TagEngineConfig struct {
	RuleBased bool
	LLMBased  bool
	MaxTags   int
}

// TagEngine combines regex rules with model suggestions.
type TagEngine struct {
	llm   ports.LLMProvider
	rules []TagRule
	cfg   TagEngineConfig
}

func NewTagEngine(llm ports.LLMProvider, rules []TagRule, cfg TagEngineConfig) *TagEngine {
	if cfg.MaxTags <= 0 {
		cfg.MaxTags = 10
	}
	return &TagEngine{llm: llm, rules: rules, cfg: cfg}
}

// Generate returns the sorted union of rule and model tags, capped at
// MaxTags. A model failure leaves only the rule tags.
func (e *TagEngine) Generate(ctx context.Context, content string, existing []string) ([]string, domain.Usage) {
	var usage domain.Usage
	slog.Info("generating_tags", "content_length", len(content))

	all := make(map[string]struct{})
	if e.cfg.RuleBased {
		for _, tag := range e.applyRules(content) {
			all[tag] = struct{}{}
		}
	}
	if e.cfg.LLMBased && e.llm != nil {
		completion, err := e.llm.Complete(ctx, tagPrompt(content, existing, e.cfg.MaxTags), domain.CompletionOptions{
			Temperature: domain.Temperature(0.3),
			MaxTokens:   200,
		})
		if err != nil {
			slog.Error("llm_tagging_failed", "error", err)
		} else {
			usage.Add(completion.TokensUsed(), completion.Cost)
			suggested := parseTagList(completion.Text)
			slog.Info("llm_tags_generated", "tags", suggested, "tokens_used", completion.TokensUsed(), "cost", completion.Cost)
			for _, tag := range suggested {
				all[tag] = struct{}{}
			}
		}
	}

	tags := make([]string, 0, len(all))
	for tag := range all {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if len(tags) > e.cfg.MaxTags {
		tags = tags[:e.cfg.MaxTags]
	}
	slog.Info("tags_generated", "tags", tags, "count", len(tags))
	return tags, usage
}

func (e *TagEngine) applyRules(content string) []string {
	var tags []string
	for _, rule := range e.rules {
		if rule.Pattern.MatchString(content) {
			slog.Debug("rule_matched", "pattern", rule.Pattern.String(), "tags", rule.Tags)
			tags = append(tags, rule.Tags...)
		}
	}
	return tags
}

var (
	tagSeparators  = regexp.MustCompile(`[,\n]`)
	tagWhitespace  = regexp.MustCompile(`\s+`)
	tagInvalidRune = regexp.MustCompile(`[^a-z0-9_-]`)
)

// parseTagList normalises a comma or newline separated model answer into
// lowercase hyphenated tags of at least two characters.
func parseTagList(raw string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, part := range tagSeparators.Split(raw, -1) {
		tag := strings.ToLower(strings.TrimSpace(part))
		tag = strings.Trim(tag, `"'`)
		tag = tagWhitespace.ReplaceAllString(tag, "-")
		tag = tagInvalidRune.ReplaceAllString(tag, "")
		if len(tag) <= 1 {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func tagPrompt(content string, existing []string, maxTags int) string {
	known := "none"
	if len(existing) > promptTagLimit {
		existing = existing[:promptTagLimit]
	}
	if len(existing) > 0 {
		known = strings.Join(existing, ", ")
	}
	return fmt.Sprintf(`Suggest up to %d tags for the document below.
Prefer tags that already exist when they fit. Use short lowercase words; join multiple words with hyphens.

Existing tags: %s

Document text:
%s

Answer with a comma-separated list of tags only.`, maxTags, known, truncateRunes(content, tagPromptChars))
}
