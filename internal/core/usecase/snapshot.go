package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

// TaxonomySnapshot is one processing pass's view of the backend's tags,
// correspondents and document types. It keeps load order for deterministic
// fuzzy matching and is never shared between concurrent passes.
type TaxonomySnapshot struct {
	tags           []domain.Tag
	tagIndex       map[string]int
	correspondents []domain.Correspondent
	corrIndex      map[string]int
	documentTypes  []domain.DocumentType
	typeIndex      map[string]int
}

func NewTaxonomySnapshot(tags []domain.Tag, correspondents []domain.Correspondent, documentTypes []domain.DocumentType) *TaxonomySnapshot {
	s := &TaxonomySnapshot{
		tagIndex:  make(map[string]int, len(tags)),
		corrIndex: make(map[string]int, len(correspondents)),
		typeIndex: make(map[string]int, len(documentTypes)),
	}
	for _, tag := range tags {
		s.AddTag(tag)
	}
	for _, c := range correspondents {
		s.AddCorrespondent(c)
	}
	for _, dt := range documentTypes {
		s.AddDocumentType(dt)
	}
	return s
}

// LoadTaxonomy fetches the full entity lists from the backend.
func LoadTaxonomy(ctx context.Context, backend ports.DocumentBackend) (*TaxonomySnapshot, error) {
	tags, err := backend.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	snap := NewTaxonomySnapshot(tags, nil, nil)
	if err := snap.loadRest(ctx, backend); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *TaxonomySnapshot) loadRest(ctx context.Context, backend ports.DocumentBackend) error {
	correspondents, err := backend.ListCorrespondents(ctx)
	if err != nil {
		return fmt.Errorf("list correspondents: %w", err)
	}
	for _, c := range correspondents {
		s.AddCorrespondent(c)
	}
	documentTypes, err := backend.ListDocumentTypes(ctx)
	if err != nil {
		return fmt.Errorf("list document types: %w", err)
	}
	for _, dt := range documentTypes {
		s.AddDocumentType(dt)
	}
	return nil
}

func fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddTag makes tag visible to later lookups in the same pass. The first
// entity loaded under a case-folded name wins exact matches.
func (s *TaxonomySnapshot) AddTag(tag domain.Tag) {
	s.tags = append(s.tags, tag)
	if _, exists := s.tagIndex[fold(tag.Name)]; !exists {
		s.tagIndex[fold(tag.Name)] = len(s.tags) - 1
	}
}

func (s *TaxonomySnapshot) TagByName(name string) (domain.Tag, bool) {
	idx, ok := s.tagIndex[fold(name)]
	if !ok {
		return domain.Tag{}, false
	}
	return s.tags[idx], true
}

func (s *TaxonomySnapshot) Tags() []domain.Tag {
	return s.tags
}

func (s *TaxonomySnapshot) TagNames() []string {
	names := make([]string, 0, len(s.tags))
	for _, tag := range s.tags {
		names = append(names, tag.Name)
	}
	return names
}

func (s *TaxonomySnapshot) AddCorrespondent(c domain.Correspondent) {
	s.correspondents = append(s.correspondents, c)
	if _, exists := s.corrIndex[fold(c.Name)]; !exists {
		s.corrIndex[fold(c.Name)] = len(s.correspondents) - 1
	}
}

func (s *TaxonomySnapshot) CorrespondentByName(name string) (domain.Correspondent, bool) {
	idx, ok := s.corrIndex[fold(name)]
	if !ok {
		return domain.Correspondent{}, false
	}
	return s.correspondents[idx], true
}

func (s *TaxonomySnapshot) Correspondents() []domain.Correspondent {
	return s.correspondents
}

func (s *TaxonomySnapshot) AddDocumentType(dt domain.DocumentType) {
	s.documentTypes = append(s.documentTypes, dt)
	if _, exists := s.typeIndex[fold(dt.Name)]; !exists {
		s.typeIndex[fold(dt.Name)] = len(s.documentTypes) - 1
	}
}

func (s *TaxonomySnapshot) DocumentTypeByName(name string) (domain.DocumentType, bool) {
	idx, ok := s.typeIndex[fold(name)]
	if !ok {
		return domain.DocumentType{}, false
	}
	return s.documentTypes[idx], true
}

func (s *TaxonomySnapshot) DocumentTypes() []domain.DocumentType {
	return s.documentTypes
}
