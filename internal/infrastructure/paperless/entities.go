package paperless

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

const matchAlgorithmAny = 1

func (c *Client) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return listAll[domain.Tag](ctx, c, "list_tags", "/tags/")
}

func (c *Client) CreateTag(ctx context.Context, name, color string) (domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Tag{}, domain.WrapError(domain.ErrInvalidInput, "create tag", fmt.Errorf("empty tag name"))
	}
	if color == "" {
		color = defaultTagColor
	}
	var tag domain.Tag
	req := createEntityRequest{Name: name, MatchingAlgorithm: matchAlgorithmAny, Color: color}
	if err := c.call(ctx, "create_tag", http.MethodPost, "/tags/", nil, req, &tag); err != nil {
		return domain.Tag{}, err
	}
	slog.Info("tag_created", "name", tag.Name, "id", tag.ID)
	return tag, nil
}

func (c *Client) GetOrCreateTag(ctx context.Context, name, color string) (domain.Tag, error) {
	return getOrCreate(ctx, "tag", name,
		func(t domain.Tag) string { return t.Name },
		c.ListTags,
		func(ctx context.Context) (domain.Tag, error) { return c.CreateTag(ctx, name, color) },
	)
}

func (c *Client) ListCorrespondents(ctx context.Context) ([]domain.Correspondent, error) {
	return listAll[domain.Correspondent](ctx, c, "list_correspondents", "/correspondents/")
}

func (c *Client) CreateCorrespondent(ctx context.Context, name string) (domain.Correspondent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Correspondent{}, domain.WrapError(domain.ErrInvalidInput, "create correspondent", fmt.Errorf("empty correspondent name"))
	}
	var corr domain.Correspondent
	req := createEntityRequest{Name: name, MatchingAlgorithm: matchAlgorithmAny}
	if err := c.call(ctx, "create_correspondent", http.MethodPost, "/correspondents/", nil, req, &corr); err != nil {
		return domain.Correspondent{}, err
	}
	slog.Info("correspondent_created", "name", corr.Name, "id", corr.ID)
	return corr, nil
}

func (c *Client) GetOrCreateCorrespondent(ctx context.Context, name string) (domain.Correspondent, error) {
	return getOrCreate(ctx, "correspondent", name,
		func(v domain.Correspondent) string { return v.Name },
		c.ListCorrespondents,
		func(ctx context.Context) (domain.Correspondent, error) { return c.CreateCorrespondent(ctx, name) },
	)
}

func (c *Client) ListDocumentTypes(ctx context.Context) ([]domain.DocumentType, error) {
	return listAll[domain.DocumentType](ctx, c, "list_document_types", "/document_types/")
}

func (c *Client) CreateDocumentType(ctx context.Context, name string) (domain.DocumentType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.DocumentType{}, domain.WrapError(domain.ErrInvalidInput, "create document type", fmt.Errorf("empty document type name"))
	}
	var docType domain.DocumentType
	req := createEntityRequest{Name: name, MatchingAlgorithm: matchAlgorithmAny}
	if err := c.call(ctx, "create_document_type", http.MethodPost, "/document_types/", nil, req, &docType); err != nil {
		return domain.DocumentType{}, err
	}
	slog.Info("document_type_created", "name", docType.Name, "id", docType.ID)
	return docType, nil
}

func (c *Client) GetOrCreateDocumentType(ctx context.Context, name string) (domain.DocumentType, error) {
	return getOrCreate(ctx, "document_type", name,
		func(v domain.DocumentType) string { return v.Name },
		c.ListDocumentTypes,
		func(ctx context.Context) (domain.DocumentType, error) { return c.CreateDocumentType(ctx, name) },
	)
}

func listAll[T any](ctx context.Context, c *Client, operation, path string) ([]T, error) {
	out := []T{}
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(c.pageSize))
		query.Set("page", strconv.Itoa(page))

		var resp listResponse[T]
		if err := c.call(ctx, operation, http.MethodGet, path, query, nil, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		if resp.Next == nil || len(resp.Results) == 0 {
			return out, nil
		}
	}
}

// getOrCreate resolves name case-insensitively and creates it when absent.
// A create rejected because a concurrent writer won the race is answered by
// re-reading the listing instead of failing.
func getOrCreate[T any](
	ctx context.Context,
	kind, name string,
	nameOf func(T) string,
	list func(context.Context) ([]T, error),
	create func(context.Context) (T, error),
) (T, error) {
	var zero T
	existing, err := list(ctx)
	if err != nil {
		return zero, err
	}
	if found, ok := findByName(existing, name, nameOf); ok {
		return found, nil
	}

	created, createErr := create(ctx)
	if createErr == nil {
		return created, nil
	}
	if !isCreateConflict(createErr) {
		return zero, createErr
	}

	existing, err = list(ctx)
	if err != nil {
		return zero, createErr
	}
	if found, ok := findByName(existing, name, nameOf); ok {
		slog.Info("create_conflict_resolved", "kind", kind, "name", name)
		return found, nil
	}
	return zero, createErr
}

func findByName[T any](items []T, name string, nameOf func(T) string) (T, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, item := range items {
		if strings.ToLower(strings.TrimSpace(nameOf(item))) == want {
			return item, true
		}
	}
	var zero T
	return zero, false
}
