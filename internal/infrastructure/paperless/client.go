// Package paperless is the REST gateway to a paperless-ngx backend.
package paperless

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100
	defaultOrdering = "-created"
	defaultTagColor = "#3498db"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
	pageSize   int
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	PageSize           int
}

func New(baseURL, token string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	base := strings.TrimRight(baseURL, "/")
	base = strings.TrimSuffix(base, "/api")
	return &Client{
		baseURL:    base + "/api",
		token:      token,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
		pageSize:   pageSize,
	}
}

// Ping checks connectivity and credentials against the API root.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", http.MethodGet, "/", nil, nil, nil)
}

func (c *Client) GetDocument(ctx context.Context, id int) (domain.Document, error) {
	if id <= 0 {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "get document", fmt.Errorf("invalid document id %d", id))
	}
	var dto documentDTO
	if err := c.call(ctx, "get_document", http.MethodGet, documentPath(id), nil, nil, &dto); err != nil {
		return domain.Document{}, err
	}
	return dto.toDomain(), nil
}

// DownloadContent returns the OCR text the backend stores on the document.
func (c *Client) DownloadContent(ctx context.Context, id int) (string, error) {
	doc, err := c.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// ListDocuments maps offset onto the backend's page numbering using Limit as
// the page size; items before the offset inside the first page are dropped.
func (c *Client) ListDocuments(ctx context.Context, filter domain.DocumentFilter) (domain.DocumentPage, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = c.pageSize
	}
	offset := max(filter.Offset, 0)
	ordering := filter.Ordering
	if ordering == "" {
		ordering = defaultOrdering
	}

	query := url.Values{}
	for k, v := range filter.Query {
		query.Set(k, v)
	}
	query.Set("page_size", strconv.Itoa(limit))
	query.Set("page", strconv.Itoa(offset/limit+1))
	query.Set("ordering", ordering)

	var page listResponse[documentDTO]
	if err := c.call(ctx, "list_documents", http.MethodGet, "/documents/", query, nil, &page); err != nil {
		return domain.DocumentPage{}, err
	}

	skip := offset % limit
	items := make([]domain.Document, 0, len(page.Results))
	for i, dto := range page.Results {
		if i < skip {
			continue
		}
		items = append(items, dto.toDomain())
	}
	return domain.DocumentPage{
		Items:   items,
		Total:   page.Count,
		HasMore: page.Next != nil || offset+len(items) < page.Count,
	}, nil
}

// UpdateDocument sends a PATCH carrying only the fields set on update.
func (c *Client) UpdateDocument(ctx context.Context, id int, update domain.DocumentUpdate) (domain.Document, error) {
	if id <= 0 {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "update document", fmt.Errorf("invalid document id %d", id))
	}
	if update.IsEmpty() {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "update document", fmt.Errorf("empty update for document %d", id))
	}
	var dto documentDTO
	if err := c.call(ctx, "update_document", http.MethodPatch, documentPath(id), nil, update, &dto); err != nil {
		return domain.Document{}, err
	}
	return dto.toDomain(), nil
}

func documentPath(id int) string {
	return "/documents/" + strconv.Itoa(id) + "/"
}
