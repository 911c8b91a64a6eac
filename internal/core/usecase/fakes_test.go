package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

type backendFake struct {
	mu sync.Mutex

	docs           map[int]domain.Document
	contents       map[int]string
	tags           []domain.Tag
	correspondents []domain.Correspondent
	documentTypes  []domain.DocumentType
	nextID         int

	getErr       error
	updateErr    error
	createTagErr map[string]error
	listDocsErr  error

	updates              map[int][]domain.DocumentUpdate
	createdTags          []string
	createdCorrespondent []string
	listDocumentCalls    int
}

func newBackendFake() *backendFake {
	return &backendFake{
		docs:         map[int]domain.Document{},
		contents:     map[int]string{},
		nextID:       1000,
		createTagErr: map[string]error{},
		updates:      map[int][]domain.DocumentUpdate{},
	}
}

func (f *backendFake) addDocument(doc domain.Document, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	f.contents[doc.ID] = content
}

func (f *backendFake) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		n += len(u)
	}
	return n
}

func (f *backendFake) GetDocument(_ context.Context, id int) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Document{}, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return domain.Document{}, domain.WrapError(domain.ErrNotFound, "get_document", errors.New("missing"))
	}
	return doc, nil
}

func (f *backendFake) ListDocuments(_ context.Context, filter domain.DocumentFilter) (domain.DocumentPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listDocumentCalls++
	if f.listDocsErr != nil {
		return domain.DocumentPage{}, f.listDocsErr
	}
	ids := make([]int, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	end := min(filter.Offset+filter.Limit, len(ids))
	page := domain.DocumentPage{Total: len(ids), HasMore: end < len(ids)}
	for _, id := range ids[min(filter.Offset, len(ids)):end] {
		page.Items = append(page.Items, f.docs[id])
	}
	return page, nil
}

func (f *backendFake) UpdateDocument(_ context.Context, id int, update domain.DocumentUpdate) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Document{}, f.updateErr
	}
	f.updates[id] = append(f.updates[id], update)
	return f.docs[id], nil
}

func (f *backendFake) DownloadContent(_ context.Context, id int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contents[id], nil
}

func (f *backendFake) ListTags(context.Context) ([]domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Tag(nil), f.tags...), nil
}

func (f *backendFake) CreateTag(_ context.Context, name, color string) (domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createTagErr[name]; err != nil {
		return domain.Tag{}, err
	}
	f.nextID++
	tag := domain.Tag{ID: f.nextID, Name: name, Color: color}
	f.tags = append(f.tags, tag)
	f.createdTags = append(f.createdTags, name)
	return tag, nil
}

func (f *backendFake) GetOrCreateTag(ctx context.Context, name, color string) (domain.Tag, error) {
	f.mu.Lock()
	for _, tag := range f.tags {
		if strings.EqualFold(tag.Name, name) {
			f.mu.Unlock()
			return tag, nil
		}
	}
	f.mu.Unlock()
	return f.CreateTag(ctx, name, color)
}

func (f *backendFake) ListCorrespondents(context.Context) ([]domain.Correspondent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Correspondent(nil), f.correspondents...), nil
}

func (f *backendFake) CreateCorrespondent(_ context.Context, name string) (domain.Correspondent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := domain.Correspondent{ID: f.nextID, Name: name}
	f.correspondents = append(f.correspondents, c)
	f.createdCorrespondent = append(f.createdCorrespondent, name)
	return c, nil
}

func (f *backendFake) GetOrCreateCorrespondent(ctx context.Context, name string) (domain.Correspondent, error) {
	f.mu.Lock()
	for _, c := range f.correspondents {
		if strings.EqualFold(c.Name, name) {
			f.mu.Unlock()
			return c, nil
		}
	}
	f.mu.Unlock()
	return f.CreateCorrespondent(ctx, name)
}

func (f *backendFake) ListDocumentTypes(context.Context) ([]domain.DocumentType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DocumentType(nil), f.documentTypes...), nil
}

func (f *backendFake) CreateDocumentType(_ context.Context, name string) (domain.DocumentType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	dt := domain.DocumentType{ID: f.nextID, Name: name}
	f.documentTypes = append(f.documentTypes, dt)
	return dt, nil
}

func (f *backendFake) GetOrCreateDocumentType(ctx context.Context, name string) (domain.DocumentType, error) {
	f.mu.Lock()
	for _, dt := range f.documentTypes {
		if strings.EqualFold(dt.Name, name) {
			f.mu.Unlock()
			return dt, nil
		}
	}
	f.mu.Unlock()
	return f.CreateDocumentType(ctx, name)
}

// llmFake answers Complete calls from texts in order (the last one repeats)
// and CompleteStructured calls with data.
type llmFake struct {
	mu sync.Mutex

	texts   []string
	data    map[string]any
	err     error
	tokens  int
	cost    float64
	prompts []string

	completeCalls   int
	structuredCalls int
}

func (f *llmFake) Complete(_ context.Context, prompt string, _ domain.CompletionOptions) (domain.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return domain.Completion{}, f.err
	}
	text := ""
	if len(f.texts) > 0 {
		idx := min(f.completeCalls-1, len(f.texts)-1)
		text = f.texts[idx]
	}
	return domain.Completion{Text: text, InputTokens: f.tokens, Cost: f.cost}, nil
}

func (f *llmFake) CompleteStructured(_ context.Context, prompt string, _ map[string]any, _ domain.CompletionOptions) (domain.StructuredCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structuredCalls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return domain.StructuredCompletion{InputTokens: f.tokens, Cost: f.cost}, f.err
	}
	return domain.StructuredCompletion{Data: f.data, InputTokens: f.tokens, Cost: f.cost}, nil
}

func (f *llmFake) CountTokens(text string) int { return len(text) / 4 }

func (f *llmFake) EstimateCost(int, int) float64 { return 0 }

func (f *llmFake) Model() string { return "fake" }

func (f *llmFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls + f.structuredCalls
}

type strategyFake struct {
	decide func(ctx context.Context, in DecisionInput) (domain.Decision, domain.Usage, error)
	mu     sync.Mutex
	calls  int
}

func (f *strategyFake) Name() string { return "fake" }

func (f *strategyFake) Decide(ctx context.Context, in DecisionInput) (domain.Decision, domain.Usage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.decide(ctx, in)
}

type publisherFake struct {
	mu      sync.Mutex
	results []domain.ProcessingResult
}

func (f *publisherFake) PublishResult(_ context.Context, result domain.ProcessingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

type metricsFake struct {
	mu       sync.Mutex
	inFlight int
	finished []domain.ProcessingResult
	syncs    map[string]int
}

func (f *metricsFake) StartDocument() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
}

func (f *metricsFake) FinishDocument(_ string, result domain.ProcessingResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.finished = append(f.finished, result)
}

func (f *metricsFake) RecordSync(trigger string, discovered int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncs == nil {
		f.syncs = make(map[string]int)
	}
	f.syncs[trigger] += discovered
}
