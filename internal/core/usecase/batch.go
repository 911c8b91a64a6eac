package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const listPageSize = 100

// ProcessBatch processes ids with at most concurrency documents in flight.
// results[i] always belongs to ids[i]. A panic inside one document becomes
// a failed result for that document; siblings keep running.
func (p *Processor) ProcessBatch(ctx context.Context, ids []int, concurrency int) []domain.ProcessingResult {
	if concurrency < 1 {
		concurrency = 1
	}
	slog.Info("batch_processing_start", "count", len(ids), "concurrency", concurrency, "strategy", p.strategy.Name())

	results := make([]domain.ProcessingResult, len(ids))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = p.Process(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Summarize aggregates results once every document has finished.
func Summarize(results []domain.ProcessingResult) domain.BatchSummary {
	summary := domain.BatchSummary{RunID: uuid.NewString(), Total: len(results)}
	var elapsed time.Duration
	for _, r := range results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Success:
			summary.Succeeded++
		default:
			summary.Failed++
		}
		summary.TotalTokens += r.TokensUsed
		summary.TotalCost += r.Cost
		elapsed += r.ProcessingTime
	}
	if len(results) > 0 {
		summary.AverageTime = elapsed / time.Duration(len(results))
	}
	return summary
}

// CollectDocumentIDs pages through the listing until limit ids are found
// or the backend runs out. limit <= 0 means no limit.
func CollectDocumentIDs(ctx context.Context, backend ports.DocumentBackend, filter domain.DocumentFilter, limit int) ([]int, error) {
	var ids []int
	filter.Offset = 0
	filter.Limit = listPageSize
	for {
		page, err := backend.ListDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range page.Items {
			ids = append(ids, doc.ID)
		}
		if limit > 0 && len(ids) >= limit {
			return ids[:limit], nil
		}
		if !page.HasMore || len(page.Items) == 0 {
			return ids, nil
		}
		filter.Offset += len(page.Items)
	}
}

// ListUnprocessed returns documents that do not carry the processed tag.
func ListUnprocessed(ctx context.Context, backend ports.DocumentBackend, processedTag string, limit int) ([]int, error) {
	filter, err := ExcludeProcessed(ctx, backend, processedTag, domain.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	return CollectDocumentIDs(ctx, backend, filter, limit)
}

// ExcludeProcessed returns a copy of filter that skips documents tagged
// processedTag. A backend without that tag yet leaves filter unchanged.
func ExcludeProcessed(ctx context.Context, backend ports.DocumentBackend, processedTag string, filter domain.DocumentFilter) (domain.DocumentFilter, error) {
	tags, err := backend.ListTags(ctx)
	if err != nil {
		return filter, fmt.Errorf("list tags: %w", err)
	}
	query := make(map[string]string, len(filter.Query)+1)
	for k, v := range filter.Query {
		query[k] = v
	}
	if tag, ok := NewTaxonomySnapshot(tags, nil, nil).TagByName(processedTag); ok {
		query["tags__id__none"] = strconv.Itoa(tag.ID)
	}
	filter.Query = query
	return filter, nil
}
