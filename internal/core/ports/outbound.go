package ports

import (
	"context"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

// DocumentBackend is the document-management REST API.
type DocumentBackend interface {
	GetDocument(ctx context.Context, id int) (domain.Document, error)
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) (domain.DocumentPage, error)
	UpdateDocument(ctx context.Context, id int, update domain.DocumentUpdate) (domain.Document, error)
	DownloadContent(ctx context.Context, id int) (string, error)

	ListTags(ctx context.Context) ([]domain.Tag, error)
	CreateTag(ctx context.Context, name, color string) (domain.Tag, error)
	GetOrCreateTag(ctx context.Context, name, color string) (domain.Tag, error)

	ListCorrespondents(ctx context.Context) ([]domain.Correspondent, error)
	CreateCorrespondent(ctx context.Context, name string) (domain.Correspondent, error)
	GetOrCreateCorrespondent(ctx context.Context, name string) (domain.Correspondent, error)

	ListDocumentTypes(ctx context.Context) ([]domain.DocumentType, error)
	CreateDocumentType(ctx context.Context, name string) (domain.DocumentType, error)
	GetOrCreateDocumentType(ctx context.Context, name string) (domain.DocumentType, error)
}

// LLMProvider is the provider-agnostic model gateway.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error)
	CompleteStructured(ctx context.Context, prompt string, schema map[string]any, opts domain.CompletionOptions) (domain.StructuredCompletion, error)
	CountTokens(text string) int
	EstimateCost(inputTokens, outputTokens int) float64
	Model() string
}

// CompletionCache stores raw provider responses keyed by request fingerprint.
type CompletionCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ResultPublisher announces finished processing passes.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result domain.ProcessingResult) error
}

// ProcessingMetrics records per-document outcomes.
type ProcessingMetrics interface {
	StartDocument()
	FinishDocument(strategy string, result domain.ProcessingResult)
	RecordSync(trigger string, discovered int)
}
