package paperless

import (
	"strings"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

type listResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// documentDTO keeps timestamps as strings: depending on the backend version
// "created" is either a full timestamp or a bare date.
type documentDTO struct {
	ID               int                  `json:"id"`
	Title            string               `json:"title"`
	Content          string               `json:"content"`
	Created          string               `json:"created"`
	Modified         string               `json:"modified"`
	Added            string               `json:"added"`
	Tags             []int                `json:"tags"`
	Correspondent    *int                 `json:"correspondent"`
	DocumentType     *int                 `json:"document_type"`
	OriginalFileName string               `json:"original_file_name"`
	CustomFields     []domain.CustomField `json:"custom_fields"`
}

func (d documentDTO) toDomain() domain.Document {
	tags := d.Tags
	if tags == nil {
		tags = []int{}
	}
	return domain.Document{
		ID:               d.ID,
		Title:            d.Title,
		Content:          d.Content,
		Created:          parseTimestamp(d.Created),
		Modified:         parseTimestamp(d.Modified),
		Added:            parseTimestamp(d.Added),
		Tags:             tags,
		Correspondent:    d.Correspondent,
		DocumentType:     d.DocumentType,
		OriginalFileName: d.OriginalFileName,
		CustomFields:     d.CustomFields,
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

type createEntityRequest struct {
	Name              string `json:"name"`
	Match             string `json:"match"`
	MatchingAlgorithm int    `json:"matching_algorithm"`
	Color             string `json:"color,omitempty"`
}
