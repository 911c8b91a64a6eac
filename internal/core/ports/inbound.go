package ports

import (
	"context"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

// DocumentProcessor runs the enrichment pipeline for single documents.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID int) domain.ProcessingResult
	ProcessBatch(ctx context.Context, documentIDs []int, concurrency int) []domain.ProcessingResult
}
