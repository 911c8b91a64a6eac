package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const minContentLength = 10

type ProcessorConfig struct {
	ProcessedTag       string
	SkipIfProcessedTag bool
}

// Processor runs Fetch, SkipCheck, ContentFetch, Decide and one write-back
// for a single document. It never returns an error: failures land in the
// result.
type Processor struct {
	backend    ports.DocumentBackend
	strategy   DecisionStrategy
	reconciler *Reconciler
	publisher  ports.ResultPublisher
	metrics    ports.ProcessingMetrics
	cfg        ProcessorConfig
	now        func() time.Time
}

func NewProcessor(
	backend ports.DocumentBackend,
	strategy DecisionStrategy,
	reconciler *Reconciler,
	publisher ports.ResultPublisher,
	metrics ports.ProcessingMetrics,
	cfg ProcessorConfig,
) *Processor {
	if cfg.ProcessedTag == "" {
		cfg.ProcessedTag = "bp-processed"
	}
	return &Processor{
		backend:    backend,
		strategy:   strategy,
		reconciler: reconciler,
		publisher:  publisher,
		metrics:    metrics,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (p *Processor) Strategy() string {
	return p.strategy.Name()
}

func (p *Processor) Process(ctx context.Context, documentID int) domain.ProcessingResult {
	start := p.now()
	if p.metrics != nil {
		p.metrics.StartDocument()
	}
	result := domain.NewProcessingResult(documentID, p.strategy.Name())
	slog.Info("processing_start", "document_id", documentID, "strategy", p.strategy.Name())

	err := p.runRecovered(ctx, documentID, &result)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		slog.Error("processing_failed",
			"document_id", documentID,
			"strategy", p.strategy.Name(),
			"kind", domain.KindName(err),
			"error", err,
		)
	} else {
		result.Success = true
	}
	result.ProcessingTime = p.now().Sub(start)
	p.finish(ctx, result)
	return result
}

// runRecovered turns a panic inside one document into a failed result so
// timing, metrics and publication still happen.
func (p *Processor) runRecovered(ctx context.Context, documentID int, result *domain.ProcessingResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("processing_panic", "document_id", documentID, "panic", r, "stack", string(debug.Stack()))
			err = domain.WrapError(domain.ErrApplication, "process document", fmt.Errorf("panic: %v", r))
		}
	}()
	return p.run(ctx, documentID, result)
}

func (p *Processor) finish(ctx context.Context, result domain.ProcessingResult) {
	if p.metrics != nil {
		p.metrics.FinishDocument(p.strategy.Name(), result)
	}
	if p.publisher != nil {
		if err := p.publisher.PublishResult(context.WithoutCancel(ctx), result); err != nil {
			slog.Warn("result_publish_failed", "document_id", result.DocumentID, "error", err)
		}
	}
	slog.Info("processing_complete",
		"document_id", result.DocumentID,
		"success", result.Success,
		"skipped", result.Skipped,
		"duration", result.ProcessingTime,
		"tokens", result.TokensUsed,
		"cost", result.Cost,
	)
}

func (p *Processor) run(ctx context.Context, documentID int, result *domain.ProcessingResult) error {
	doc, err := p.backend.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}

	tags, err := p.backend.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	snapshot := NewTaxonomySnapshot(tags, nil, nil)

	if p.alreadyProcessed(doc, snapshot) {
		slog.Info("document_already_processed", "document_id", documentID, "tag", p.cfg.ProcessedTag)
		result.Skipped = true
		return nil
	}

	content, err := p.backend.DownloadContent(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch content: %w", err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(content)) < minContentLength {
		return domain.WrapError(domain.ErrInvalidInput, "fetch content", errors.New("document content is empty or too short"))
	}

	if err := snapshot.loadRest(ctx, p.backend); err != nil {
		return err
	}

	decision, usage, err := p.strategy.Decide(ctx, DecisionInput{Document: doc, Content: content, Snapshot: snapshot})
	result.TokensUsed += usage.Tokens
	result.Cost += usage.Cost
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}

	update := p.buildUpdate(ctx, doc, snapshot, decision, result)
	if update.IsEmpty() {
		slog.Info("no_fields_to_update", "document_id", documentID)
		return nil
	}
	if _, err := p.backend.UpdateDocument(ctx, documentID, update); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	slog.Info("document_updated", "document_id", documentID, "fields", update.Fields())
	return nil
}

func (p *Processor) alreadyProcessed(doc domain.Document, snapshot *TaxonomySnapshot) bool {
	if !p.cfg.SkipIfProcessedTag {
		return false
	}
	tag, ok := snapshot.TagByName(p.cfg.ProcessedTag)
	return ok && doc.HasTag(tag.ID)
}

// buildUpdate reconciles the decision into one partial update. Fields the
// decision leaves empty stay out of the payload. Custom fields are recorded
// in the result only.
func (p *Processor) buildUpdate(ctx context.Context, doc domain.Document, snapshot *TaxonomySnapshot, decision domain.Decision, result *domain.ProcessingResult) domain.DocumentUpdate {
	var update domain.DocumentUpdate

	if title := strings.TrimSpace(decision.Title); title != "" {
		update.Title = &title
		result.Title = title
	}

	if len(decision.Tags) > 0 {
		resolved := p.reconciler.ResolveTags(ctx, snapshot, decision.Tags, decision.RequiresAction)
		if len(resolved) > 0 {
			update.Tags = make([]int, 0, len(resolved))
			for _, tag := range resolved {
				update.Tags = append(update.Tags, tag.ID)
				result.Tags = append(result.Tags, tag.Name)
			}
		}
	}

	if decision.Correspondent != "" {
		correspondent, err := p.reconciler.ResolveCorrespondent(ctx, snapshot, decision.Correspondent)
		if err != nil {
			slog.Warn("correspondent_resolution_failed", "document_id", doc.ID, "correspondent", decision.Correspondent, "error", err)
		} else if correspondent != nil {
			update.Correspondent = &correspondent.ID
			result.Correspondent = correspondent.Name
		}
	}

	if decision.DocumentType != "" {
		documentType, err := p.reconciler.ResolveDocumentType(ctx, snapshot, decision.DocumentType)
		if err != nil {
			slog.Warn("document_type_resolution_failed", "document_id", doc.ID, "document_type", decision.DocumentType, "error", err)
		} else if documentType != nil {
			update.DocumentType = &documentType.ID
			result.DocumentType = documentType.Name
		}
	}

	if decision.DocumentDate != "" {
		date := decision.DocumentDate
		update.CreatedDate = &date
		result.Metadata["document_date"] = date
	}
	if decision.Reasoning != "" {
		result.Metadata["reasoning"] = decision.Reasoning
	}
	if len(decision.CustomFields) > 0 {
		result.Metadata["custom_fields"] = decision.CustomFields
		slog.Info("custom_fields_extracted", "document_id", doc.ID, "fields", decision.CustomFields)
	}
	if decision.RequiresAction {
		result.Metadata["requires_action"] = true
	}
	result.Summary = decision.Summary
	return update
}
