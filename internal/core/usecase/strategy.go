package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

const (
	StrategyStaged  = "staged"
	StrategyAgentic = "agentic"
)

// DecisionInput is everything a strategy may look at. The snapshot is owned
// by the current processing pass.
type DecisionInput struct {
	Document domain.Document
	Content  string
	Snapshot *TaxonomySnapshot
}

// DecisionStrategy turns a document into a Decision. Usage is returned even
// when err is non-nil so partial LLM spend is still accounted for.
type DecisionStrategy interface {
	Name() string
	Decide(ctx context.Context, in DecisionInput) (domain.Decision, domain.Usage, error)
}

type StagedFeatures struct {
	TitleGeneration    bool
	Tagging            bool
	MetadataExtraction bool
	Categorization     bool
	Summarization      bool
}

type StagedConfig struct {
	Features          StagedFeatures
	SkipIfTitleExists bool
	SkipIfTagsExist   bool
}

// StagedStrategy makes one LLM call per concern. Each helper degrades to a
// rule-based or empty answer on model failure, so Decide only fails on
// cancellation.
type StagedStrategy struct {
	titles         *TitleGenerator
	metadata       *MetadataExtractor
	tags           *TagEngine
	correspondents *CorrespondentMatcher
	categorizer    *Categorizer
	summarizer     *Summarizer
	cfg            StagedConfig
}

func NewStagedStrategy(
	titles *TitleGenerator,
	metadata *MetadataExtractor,
	tags *TagEngine,
	correspondents *CorrespondentMatcher,
	categorizer *Categorizer,
	summarizer *Summarizer,
	cfg StagedConfig,
) *StagedStrategy {
	return &StagedStrategy{
		titles:         titles,
		metadata:       metadata,
		tags:           tags,
		correspondents: correspondents,
		categorizer:    categorizer,
		summarizer:     summarizer,
		cfg:            cfg,
	}
}

func (s *StagedStrategy) Name() string { return StrategyStaged }

func (s *StagedStrategy) Decide(ctx context.Context, in DecisionInput) (domain.Decision, domain.Usage, error) {
	var (
		decision domain.Decision
		usage    domain.Usage
	)
	doc := in.Document
	features := s.cfg.Features

	if features.TitleGeneration && s.titles != nil {
		if s.cfg.SkipIfTitleExists && doc.HasGeneratedTitle() {
			slog.Debug("title_generation_skipped", "document_id", doc.ID, "reason", "title_exists")
		} else {
			title, u := s.titles.Generate(ctx, in.Content, nil, "")
			usage.Add(u.Tokens, u.Cost)
			decision.Title = title
		}
	}
	if err := ctx.Err(); err != nil {
		return decision, usage, err
	}

	if features.MetadataExtraction && s.metadata != nil {
		metadata, u := s.metadata.Extract(ctx, in.Content)
		usage.Add(u.Tokens, u.Cost)
		s.applyMetadata(ctx, &decision, &usage, in, metadata)
	}
	if err := ctx.Err(); err != nil {
		return decision, usage, err
	}

	if features.Tagging && s.tags != nil {
		if s.cfg.SkipIfTagsExist && len(doc.Tags) > 0 {
			slog.Debug("tag_generation_skipped", "document_id", doc.ID, "reason", "tags_exist")
		} else {
			tags, u := s.tags.Generate(ctx, in.Content, in.Snapshot.TagNames())
			usage.Add(u.Tokens, u.Cost)
			decision.Tags = tags
		}
	}

	if features.Categorization && s.categorizer != nil {
		documentType, u := s.categorizer.Categorize(ctx, in.Content, in.Snapshot.DocumentTypes())
		usage.Add(u.Tokens, u.Cost)
		decision.DocumentType = documentType
	}

	if features.Summarization && s.summarizer != nil {
		summary, u := s.summarizer.Summarize(ctx, in.Content)
		usage.Add(u.Tokens, u.Cost)
		decision.Summary = summary
	}
	return decision, usage, ctx.Err()
}

func (s *StagedStrategy) applyMetadata(ctx context.Context, decision *domain.Decision, usage *domain.Usage, in DecisionInput, metadata map[string]any) {
	if date, ok := metadata["document_date"].(string); ok {
		decision.DocumentDate = date
	}
	if name, ok := metadata["correspondent"].(string); ok && strings.TrimSpace(name) != "" {
		if s.correspondents != nil {
			matched, u := s.correspondents.Match(ctx, in.Content, name, in.Snapshot.Correspondents())
			usage.Add(u.Tokens, u.Cost)
			name = matched
		}
		decision.Correspondent = name
	}
	for key, value := range metadata {
		if key == "document_date" || key == "correspondent" {
			continue
		}
		if decision.CustomFields == nil {
			decision.CustomFields = make(map[string]any)
		}
		decision.CustomFields[key] = value
	}
}

// StrategyByName returns the strategy whose Name matches.
func StrategyByName(name string, strategies ...DecisionStrategy) (DecisionStrategy, error) {
	for _, s := range strategies {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, domain.WrapError(domain.ErrInvalidInput, "select strategy", fmt.Errorf("unknown strategy %q", name))
}
