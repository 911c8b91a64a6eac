package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

func TestCompleteSendsOptionsAndReadsUsage(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  Stromrechnung März  ","done_reason":"stop","prompt_eval_count":120,"eval_count":8}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama2", Options{Temperature: 0.3, MaxTokens: 50})
	out, err := client.Complete(context.Background(), "title please", domain.CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Text != "Stromrechnung März" {
		t.Fatalf("unexpected text %q", out.Text)
	}
	if out.TokensUsed() != 128 || out.Cost != 0 {
		t.Fatalf("unexpected usage: tokens=%d cost=%f", out.TokensUsed(), out.Cost)
	}
	options, _ := payload["options"].(map[string]any)
	if options["temperature"] != 0.3 || options["num_predict"] != float64(50) {
		t.Fatalf("unexpected options: %#v", options)
	}
	if payload["stream"] != false {
		t.Fatalf("expected non-streaming request")
	}
}

func TestCompleteStructuredSendsSchemaAsFormat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"Sure: {\"title\":\"Invoice ACME\"}","prompt_eval_count":10,"eval_count":5}`))
	}))
	defer server.Close()

	schema := map[string]any{"type": "object", "properties": map[string]any{"title": map[string]any{"type": "string"}}}
	client := New(server.URL, "llama2", Options{})
	out, err := client.CompleteStructured(context.Background(), "extract", schema, domain.CompletionOptions{})
	if err != nil {
		t.Fatalf("CompleteStructured() error = %v", err)
	}
	if out.Data["title"] != "Invoice ACME" {
		t.Fatalf("unexpected data: %#v", out.Data)
	}
	if _, ok := payload["format"].(map[string]any); !ok {
		t.Fatalf("expected schema in format, got %#v", payload["format"])
	}
	if prompt, _ := payload["prompt"].(string); !strings.Contains(prompt, `"title"`) {
		t.Fatalf("expected schema restated in prompt: %s", prompt)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "llama2", Options{})
	_, err := client.Complete(context.Background(), "hello", domain.CompletionOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind for 502, got %v", err)
	}
}

func TestStructuredOutputThatIsNotJSONIsInvalidInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"no json here"}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama2", Options{})
	_, err := client.CompleteStructured(context.Background(), "extract", map[string]any{"type": "object"}, domain.CompletionOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
