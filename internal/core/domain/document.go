package domain

import (
	"strings"
	"time"
)

// Document is a read-only snapshot of a backend document.
type Document struct {
	ID               int           `json:"id"`
	Title            string        `json:"title"`
	Content          string        `json:"content"`
	Created          time.Time     `json:"created"`
	Modified         time.Time     `json:"modified"`
	Added            time.Time     `json:"added"`
	Tags             []int         `json:"tags"`
	Correspondent    *int          `json:"correspondent"`
	DocumentType     *int          `json:"document_type"`
	OriginalFileName string        `json:"original_file_name"`
	CustomFields     []CustomField `json:"custom_fields,omitempty"`
}

type CustomField struct {
	Field int `json:"field"`
	Value any `json:"value"`
}

func (d Document) HasTag(id int) bool {
	for _, tagID := range d.Tags {
		if tagID == id {
			return true
		}
	}
	return false
}

// HasGeneratedTitle reports whether the title differs from the upload file name.
func (d Document) HasGeneratedTitle() bool {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return false
	}
	return title != strings.TrimSpace(d.OriginalFileName)
}

type Tag struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Color             string `json:"color,omitempty"`
	Match             string `json:"match,omitempty"`
	MatchingAlgorithm int    `json:"matching_algorithm,omitempty"`
	DocumentCount     int    `json:"document_count,omitempty"`
}

type Correspondent struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Match             string `json:"match,omitempty"`
	MatchingAlgorithm int    `json:"matching_algorithm,omitempty"`
	DocumentCount     int    `json:"document_count,omitempty"`
}

type DocumentType struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Match             string `json:"match,omitempty"`
	MatchingAlgorithm int    `json:"matching_algorithm,omitempty"`
}

// DocumentFilter narrows a document listing. Query holds backend filter
// parameters such as "tags__id__none" or "title__icontains".
type DocumentFilter struct {
	Query    map[string]string
	Limit    int
	Offset   int
	Ordering string
}

type DocumentPage struct {
	Items   []Document
	Total   int
	HasMore bool
}

// DocumentUpdate is a partial update. Nil fields are not sent.
type DocumentUpdate struct {
	Title         *string `json:"title,omitempty"`
	Tags          []int   `json:"tags,omitempty"`
	Correspondent *int    `json:"correspondent,omitempty"`
	DocumentType  *int    `json:"document_type,omitempty"`
	CreatedDate   *string `json:"created_date,omitempty"`
}

func (u DocumentUpdate) IsEmpty() bool {
	return u.Title == nil && u.Tags == nil && u.Correspondent == nil && u.DocumentType == nil && u.CreatedDate == nil
}

// Fields lists the payload keys that will be sent, in a stable order.
func (u DocumentUpdate) Fields() []string {
	fields := make([]string, 0, 5)
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Tags != nil {
		fields = append(fields, "tags")
	}
	if u.Correspondent != nil {
		fields = append(fields, "correspondent")
	}
	if u.DocumentType != nil {
		fields = append(fields, "document_type")
	}
	if u.CreatedDate != nil {
		fields = append(fields, "created_date")
	}
	return fields
}
