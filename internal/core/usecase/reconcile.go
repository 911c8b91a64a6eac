package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const (
	processedTagColor = "#2ecc71"
	actionTagColor    = "#e74c3c"
)

type ReconcilerConfig struct {
	ProcessedTag string
	ActionTag    string
	// DefaultTagColor is used for tags created from LLM candidates.
	DefaultTagColor string
}

// Reconciler maps LLM-proposed names onto backend entities, creating the
// ones that do not exist yet.
type Reconciler struct {
	backend ports.DocumentBackend
	cfg     ReconcilerConfig
}

func NewReconciler(backend ports.DocumentBackend, cfg ReconcilerConfig) *Reconciler {
	if cfg.ProcessedTag == "" {
		cfg.ProcessedTag = "bp-processed"
	}
	if cfg.ActionTag == "" {
		cfg.ActionTag = "offen"
	}
	return &Reconciler{backend: backend, cfg: cfg}
}

// ResolveTags resolves candidates in order: exact case-insensitive match,
// then bidirectional substring match in snapshot load order, then creation.
// The action tag (when requiresAction) and the processed marker are appended
// last. A failed creation drops only that tag. The returned tags carry no
// duplicate IDs.
func (r *Reconciler) ResolveTags(ctx context.Context, snap *TaxonomySnapshot, candidates []string, requiresAction bool) []domain.Tag {
	resolved := make([]domain.Tag, 0, len(candidates)+2)
	seen := make(map[int]struct{}, len(candidates)+2)
	add := func(tag domain.Tag) {
		if _, dup := seen[tag.ID]; dup {
			return
		}
		seen[tag.ID] = struct{}{}
		resolved = append(resolved, tag)
	}

	for _, candidate := range candidates {
		name := strings.TrimSpace(candidate)
		if name == "" {
			continue
		}
		if tag, ok := snap.TagByName(name); ok {
			add(tag)
			continue
		}
		if tag, ok := substringMatch(snap, name); ok {
			// Short candidates can merge into unrelated longer names; kept
			// because it is what deduplicates near-identical tags.
			slog.Debug("tag_fuzzy_matched", "requested", name, "matched", tag.Name, "tag_id", tag.ID)
			add(tag)
			continue
		}

		tag, err := r.backend.CreateTag(ctx, name, r.cfg.DefaultTagColor)
		if err != nil {
			slog.Warn("tag_creation_failed", "tag", name, "error", err)
			continue
		}
		snap.AddTag(tag)
		slog.Info("tag_created", "tag", tag.Name, "tag_id", tag.ID)
		add(tag)
	}

	if requiresAction {
		if tag, err := r.systemTag(ctx, snap, r.cfg.ActionTag, actionTagColor); err != nil {
			slog.Warn("action_tag_creation_failed", "tag", r.cfg.ActionTag, "error", err)
		} else {
			add(tag)
		}
	}
	if tag, err := r.systemTag(ctx, snap, r.cfg.ProcessedTag, processedTagColor); err != nil {
		slog.Warn("processed_tag_creation_failed", "tag", r.cfg.ProcessedTag, "error", err)
	} else {
		add(tag)
	}
	return resolved
}

func substringMatch(snap *TaxonomySnapshot, candidate string) (domain.Tag, bool) {
	needle := fold(candidate)
	for _, tag := range snap.Tags() {
		existing := fold(tag.Name)
		if existing == "" {
			continue
		}
		if strings.Contains(existing, needle) || strings.Contains(needle, existing) {
			return tag, true
		}
	}
	return domain.Tag{}, false
}

func (r *Reconciler) systemTag(ctx context.Context, snap *TaxonomySnapshot, name, color string) (domain.Tag, error) {
	if tag, ok := snap.TagByName(name); ok {
		return tag, nil
	}
	tag, err := r.backend.GetOrCreateTag(ctx, name, color)
	if err != nil {
		return domain.Tag{}, err
	}
	snap.AddTag(tag)
	return tag, nil
}

// ResolveCorrespondent matches exactly (case-insensitive) or creates a new
// correspondent. There is no fuzzy fallback. A blank name resolves to nil.
func (r *Reconciler) ResolveCorrespondent(ctx context.Context, snap *TaxonomySnapshot, name string) (*domain.Correspondent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if c, ok := snap.CorrespondentByName(name); ok {
		slog.Debug("correspondent_exact_match", "requested", name, "correspondent_id", c.ID)
		return &c, nil
	}

	c, err := r.backend.CreateCorrespondent(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create correspondent %q: %w", name, err)
	}
	snap.AddCorrespondent(c)
	slog.Info("correspondent_created", "correspondent", c.Name, "correspondent_id", c.ID)
	return &c, nil
}

// ResolveDocumentType matches exactly or falls back to get-or-create.
func (r *Reconciler) ResolveDocumentType(ctx context.Context, snap *TaxonomySnapshot, name string) (*domain.DocumentType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if dt, ok := snap.DocumentTypeByName(name); ok {
		return &dt, nil
	}
	dt, err := r.backend.GetOrCreateDocumentType(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get or create document type %q: %w", name, err)
	}
	snap.AddDocumentType(dt)
	return &dt, nil
}
