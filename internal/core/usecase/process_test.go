package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

const invoiceText = "Rechnung Nr. RE-2024-001 vom 05.03.2024 ueber 119,00 € fuer Strom"

func newTestProcessor(backend *backendFake, strategy DecisionStrategy, publisher *publisherFake) *Processor {
	var pub ports.ResultPublisher
	if publisher != nil {
		pub = publisher
	}
	return NewProcessor(backend, strategy, NewReconciler(backend, ReconcilerConfig{}), pub, nil, ProcessorConfig{
		ProcessedTag:       "bp-processed",
		SkipIfProcessedTag: true,
	})
}

func TestProcessSkipsAlreadyProcessedDocument(t *testing.T) {
	backend := newBackendFake()
	backend.tags = []domain.Tag{{ID: 1, Name: "bp-processed"}}
	backend.addDocument(domain.Document{ID: 10, Tags: []int{1}}, invoiceText)
	llm := &llmFake{data: map[string]any{"title": "x"}}
	p := newTestProcessor(backend, NewAgenticStrategy(llm), nil)

	result := p.Process(context.Background(), 10)

	if !result.Success || !result.Skipped {
		t.Fatalf("expected skipped success, got %+v", result)
	}
	if llm.calls() != 0 || backend.updateCount() != 0 {
		t.Fatalf("expected zero llm and update calls, got llm=%d updates=%d", llm.calls(), backend.updateCount())
	}
}

func TestProcessFailsFastOnEmptyContent(t *testing.T) {
	for _, content := range []string{"", "     "} {
		backend := newBackendFake()
		backend.addDocument(domain.Document{ID: 11}, content)
		llm := &llmFake{data: map[string]any{"title": "x"}}
		p := newTestProcessor(backend, NewAgenticStrategy(llm), nil)

		result := p.Process(context.Background(), 11)

		if result.Success || len(result.Errors) == 0 {
			t.Fatalf("expected failure for %q, got %+v", content, result)
		}
		if !strings.Contains(result.Errors[0], domain.ErrInvalidInput.Error()) {
			t.Fatalf("expected validation error, got %v", result.Errors)
		}
		if llm.calls() != 0 {
			t.Fatalf("expected zero llm calls, got %d", llm.calls())
		}
		if result.ProcessingTime < 0 {
			t.Fatalf("expected processing time recorded")
		}
	}
}

func TestProcessWritesOnlyDecidedFields(t *testing.T) {
	backend := newBackendFake()
	backend.addDocument(domain.Document{ID: 12}, invoiceText)
	strategy := &strategyFake{decide: func(context.Context, DecisionInput) (domain.Decision, domain.Usage, error) {
		return domain.Decision{Title: "Stromrechnung Maerz 2024"}, domain.Usage{Tokens: 10, Cost: 0.01}, nil
	}}
	p := newTestProcessor(backend, strategy, nil)

	result := p.Process(context.Background(), 12)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	updates := backend.updates[12]
	if len(updates) != 1 {
		t.Fatalf("expected exactly one update call, got %d", len(updates))
	}
	if fields := updates[0].Fields(); len(fields) != 1 || fields[0] != "title" {
		t.Fatalf("expected only title in payload, got %v", fields)
	}
	if result.TokensUsed != 10 || result.Cost != 0.01 {
		t.Fatalf("unexpected usage: %+v", result)
	}
}

func TestProcessAppliesAgenticDecisionInOneUpdate(t *testing.T) {
	backend := newBackendFake()
	backend.tags = []domain.Tag{{ID: 1, Name: "rechnung"}, {ID: 2, Name: "bp-processed"}}
	backend.correspondents = []domain.Correspondent{{ID: 7, Name: "EnBW Energie Baden-Wuerttemberg AG"}}
	backend.addDocument(domain.Document{ID: 13}, invoiceText)
	llm := &llmFake{tokens: 500, cost: 0.02, data: map[string]any{
		"title":           "Stromrechnung EnBW Maerz 2024",
		"tags":            []any{"Rechnung", "strom"},
		"correspondent":   "EnBW Energie Baden-Wuerttemberg AG",
		"document_date":   "05.03.2024",
		"requires_action": true,
		"reasoning":       "short",
		"custom_fields":   map[string]any{"invoice_number": "RE-2024-001", "amount": 119.0},
	}}
	publisher := &publisherFake{}
	p := newTestProcessor(backend, NewAgenticStrategy(llm), publisher)

	result := p.Process(context.Background(), 13)

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	updates := backend.updates[13]
	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	u := updates[0]
	if *u.Title != "Stromrechnung EnBW Maerz 2024" || *u.Correspondent != 7 || *u.CreatedDate != "2024-03-05" {
		t.Fatalf("unexpected update: %+v", u)
	}
	want := []string{"rechnung", "strom", "offen", "bp-processed"}
	if len(result.Tags) != len(want) {
		t.Fatalf("expected tags %v, got %v", want, result.Tags)
	}
	for i := range want {
		if result.Tags[i] != want[i] {
			t.Fatalf("expected tags %v, got %v", want, result.Tags)
		}
	}
	if u.Tags[0] != 1 || u.Tags[3] != 2 {
		t.Fatalf("expected existing tag ids reused, got %v", u.Tags)
	}
	if _, ok := result.Metadata["custom_fields"]; !ok {
		t.Fatalf("expected custom fields in result metadata")
	}
	if result.TokensUsed != 500 || result.Cost != 0.02 {
		t.Fatalf("unexpected usage %d %f", result.TokensUsed, result.Cost)
	}
	if len(publisher.results) != 1 || publisher.results[0].DocumentID != 13 {
		t.Fatalf("expected published result, got %+v", publisher.results)
	}
}

func TestProcessRecordsUsageWhenDecisionFails(t *testing.T) {
	backend := newBackendFake()
	backend.addDocument(domain.Document{ID: 14}, invoiceText)
	strategy := &strategyFake{decide: func(context.Context, DecisionInput) (domain.Decision, domain.Usage, error) {
		return domain.Decision{}, domain.Usage{Tokens: 42, Cost: 0.5}, domain.WrapError(domain.ErrRateLimited, "complete", errors.New("429"))
	}}
	p := newTestProcessor(backend, strategy, nil)

	result := p.Process(context.Background(), 14)

	if result.Success || result.TokensUsed != 42 || result.Cost != 0.5 {
		t.Fatalf("expected failure with usage recorded, got %+v", result)
	}
	if backend.updateCount() != 0 {
		t.Fatalf("expected no update after failed decision")
	}
}

func TestProcessReportsUpdateFailure(t *testing.T) {
	backend := newBackendFake()
	backend.updateErr = errors.New("patch failed")
	backend.addDocument(domain.Document{ID: 15}, invoiceText)
	strategy := &strategyFake{decide: func(context.Context, DecisionInput) (domain.Decision, domain.Usage, error) {
		return domain.Decision{Title: "A title"}, domain.Usage{}, nil
	}}
	p := newTestProcessor(backend, strategy, nil)

	result := p.Process(context.Background(), 15)
	if result.Success || !strings.Contains(result.Errors[0], "patch failed") {
		t.Fatalf("expected update failure, got %+v", result)
	}
}

func TestProcessBatchBoundsConcurrencyAndKeysResults(t *testing.T) {
	backend := newBackendFake()
	ids := make([]int, 0, 20)
	for id := 1; id <= 20; id++ {
		backend.addDocument(domain.Document{ID: id}, invoiceText)
		ids = append(ids, id)
	}
	var inFlight, peak atomic.Int32
	strategy := &strategyFake{decide: func(_ context.Context, in DecisionInput) (domain.Decision, domain.Usage, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(time.Duration(20-in.Document.ID) * time.Millisecond)
		inFlight.Add(-1)
		return domain.Decision{Title: "Doc"}, domain.Usage{}, nil
	}}
	p := newTestProcessor(backend, strategy, nil)

	results := p.ProcessBatch(context.Background(), ids, 5)

	if len(results) != 20 {
		t.Fatalf("expected 20 results, got %d", len(results))
	}
	if peak.Load() > 5 {
		t.Fatalf("expected at most 5 in flight, saw %d", peak.Load())
	}
	for i, r := range results {
		if r.DocumentID != ids[i] || !r.Success {
			t.Fatalf("result %d: unexpected %+v", i, r)
		}
	}
}

func TestProcessBatchIsolatesPanics(t *testing.T) {
	backend := newBackendFake()
	ids := []int{5, 6, 7, 8}
	for _, id := range ids {
		backend.addDocument(domain.Document{ID: id}, invoiceText)
	}
	strategy := &strategyFake{decide: func(_ context.Context, in DecisionInput) (domain.Decision, domain.Usage, error) {
		if in.Document.ID == 7 {
			panic("unexpected state")
		}
		return domain.Decision{Title: "Doc"}, domain.Usage{}, nil
	}}
	p := newTestProcessor(backend, strategy, nil)

	results := p.ProcessBatch(context.Background(), ids, 2)

	for _, r := range results {
		if r.DocumentID == 7 {
			if r.Success || len(r.Errors) == 0 {
				t.Fatalf("expected failed result for 7, got %+v", r)
			}
			continue
		}
		if !r.Success {
			t.Fatalf("expected success for %d, got %+v", r.DocumentID, r)
		}
	}
}

func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func TestProcessRecoversPanicIntoFailedResult(t *testing.T) {
	backend := newBackendFake()
	backend.addDocument(domain.Document{ID: 3}, invoiceText)
	strategy := &strategyFake{decide: func(context.Context, DecisionInput) (domain.Decision, domain.Usage, error) {
		panic("boom")
	}}
	publisher := &publisherFake{}
	metrics := &metricsFake{}
	p := newTestProcessor(backend, strategy, publisher)
	p.metrics = metrics
	p.now = steppingClock(time.Second)

	result := p.Process(context.Background(), 3)

	if result.Success || len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "panic: boom") {
		t.Fatalf("expected failed result carrying the panic, got %+v", result)
	}
	if result.ProcessingTime != time.Second {
		t.Fatalf("expected elapsed time to be recorded, got %s", result.ProcessingTime)
	}
	if metrics.inFlight != 0 || len(metrics.finished) != 1 {
		t.Fatalf("expected one finished document and nothing in flight, got inFlight=%d finished=%d", metrics.inFlight, len(metrics.finished))
	}
	if len(publisher.results) != 1 || publisher.results[0].DocumentID != 3 {
		t.Fatalf("expected failed result to be published, got %+v", publisher.results)
	}
	if len(backend.updates) != 0 {
		t.Fatalf("expected no write-back after a panic, got %+v", backend.updates)
	}
}

func TestProcessBatchPanicStillFinishesDocument(t *testing.T) {
	backend := newBackendFake()
	for _, id := range []int{1, 2, 3} {
		backend.addDocument(domain.Document{ID: id}, invoiceText)
	}
	strategy := &strategyFake{decide: func(_ context.Context, in DecisionInput) (domain.Decision, domain.Usage, error) {
		if in.Document.ID == 2 {
			panic("unexpected state")
		}
		return domain.Decision{Title: "Doc"}, domain.Usage{}, nil
	}}
	publisher := &publisherFake{}
	metrics := &metricsFake{}
	p := newTestProcessor(backend, strategy, publisher)
	p.metrics = metrics
	p.now = steppingClock(time.Millisecond)

	results := p.ProcessBatch(context.Background(), []int{1, 2, 3}, 3)

	if metrics.inFlight != 0 || len(metrics.finished) != 3 {
		t.Fatalf("expected every document finished, got inFlight=%d finished=%d", metrics.inFlight, len(metrics.finished))
	}
	if len(publisher.results) != 3 {
		t.Fatalf("expected three published results, got %d", len(publisher.results))
	}
	if results[1].Success || results[1].ProcessingTime <= 0 {
		t.Fatalf("expected timed failure for the panicking document, got %+v", results[1])
	}
}

func TestProcessCountsContentLengthInCharacters(t *testing.T) {
	backend := newBackendFake()
	backend.addDocument(domain.Document{ID: 4}, "äöüÄÖÜ")
	strategy := &strategyFake{decide: func(context.Context, DecisionInput) (domain.Decision, domain.Usage, error) {
		return domain.Decision{Title: "Umlaute"}, domain.Usage{}, nil
	}}
	p := newTestProcessor(backend, strategy, nil)

	result := p.Process(context.Background(), 4)

	if result.Success || strategy.calls != 0 {
		t.Fatalf("expected six characters to be rejected as too short, got %+v (calls=%d)", result, strategy.calls)
	}
}

func TestSummarize(t *testing.T) {
	results := []domain.ProcessingResult{
		{DocumentID: 1, Success: true, TokensUsed: 10, Cost: 0.1, ProcessingTime: 2 * time.Second},
		{DocumentID: 2, Success: true, Skipped: true, ProcessingTime: 0},
		{DocumentID: 3, Errors: []string{"x"}, TokensUsed: 5, Cost: 0.05, ProcessingTime: time.Second},
	}
	s := Summarize(results)
	if s.Total != 3 || s.Succeeded != 1 || s.Skipped != 1 || s.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.TotalTokens != 15 || s.AverageTime != time.Second || s.RunID == "" {
		t.Fatalf("unexpected aggregates: %+v", s)
	}
}

func TestListUnprocessedFiltersByProcessedTag(t *testing.T) {
	backend := newBackendFake()
	backend.tags = []domain.Tag{{ID: 4, Name: "bp-processed"}}
	for id := 1; id <= 250; id++ {
		backend.addDocument(domain.Document{ID: id}, "")
	}
	ids, err := ListUnprocessed(context.Background(), backend, "bp-processed", 120)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 120 || ids[0] != 1 || ids[119] != 120 {
		t.Fatalf("unexpected ids: len=%d", len(ids))
	}
	if backend.listDocumentCalls != 2 {
		t.Fatalf("expected two pages, got %d calls", backend.listDocumentCalls)
	}
}

func TestExcludeProcessedKeepsCallerQuery(t *testing.T) {
	backend := newBackendFake()
	backend.tags = []domain.Tag{{ID: 4, Name: "BP-Processed"}}
	base := domain.DocumentFilter{Query: map[string]string{"correspondent__id": "9"}}

	filter, err := ExcludeProcessed(context.Background(), backend, "bp-processed", base)
	if err != nil {
		t.Fatalf("exclude: %v", err)
	}
	if filter.Query["tags__id__none"] != "4" || filter.Query["correspondent__id"] != "9" {
		t.Fatalf("unexpected query %v", filter.Query)
	}
	if _, mutated := base.Query["tags__id__none"]; mutated {
		t.Fatalf("caller query must not be modified")
	}

	backend.tags = nil
	filter, err = ExcludeProcessed(context.Background(), backend, "bp-processed", domain.DocumentFilter{})
	if err != nil {
		t.Fatalf("exclude without tag: %v", err)
	}
	if len(filter.Query) != 0 {
		t.Fatalf("expected empty query when the tag does not exist, got %v", filter.Query)
	}
}
