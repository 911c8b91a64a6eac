package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kenny1338/better-paperless-ngx/internal/config"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/usecase"
)

func newPaperlessStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":   1,
			"next":    nil,
			"results": []map[string]any{{"id": 3, "name": "bp-processed"}},
		})
	})
	mux.HandleFunc("/api/documents/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tags__id__none"); got != "3" {
			t.Errorf("expected processed tag filter 3, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":   2,
			"next":    nil,
			"results": []map[string]any{{"id": 11, "title": "a"}, {"id": 12, "title": "b"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(paperlessURL string) config.Config {
	cfg := config.Defaults()
	cfg.Paperless.URL = paperlessURL
	cfg.Paperless.Token = "0123456789abcdef"
	cfg.LLM.Provider = "ollama"
	return cfg
}

func TestNewWiresBothStrategies(t *testing.T) {
	srv := newPaperlessStub(t)
	app, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if got := app.Processor(false).Strategy(); got != usecase.StrategyStaged {
		t.Fatalf("expected staged processor, got %q", got)
	}
	if got := app.Processor(true).Strategy(); got != usecase.StrategyAgentic {
		t.Fatalf("expected agentic processor, got %q", got)
	}
	if app.Bus != nil {
		t.Fatalf("expected no bus with nats disabled")
	}
	if app.LLM.Model() != "llama2" {
		t.Fatalf("expected configured ollama model, got %q", app.LLM.Model())
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig("http://localhost:8000")
	cfg.LLM.Provider = "unknown"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestListUnprocessedFiltersProcessedTag(t *testing.T) {
	srv := newPaperlessStub(t)
	app, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	ids, err := app.ListUnprocessed(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListUnprocessed() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 11 || ids[1] != 12 {
		t.Fatalf("unexpected ids %v", ids)
	}
}
