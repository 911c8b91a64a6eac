package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/common"
)

func TestCompleteOmitsTemperatureForRestrictedModels(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Invoice ACME "},"finish_reason":"stop"}],"usage":{"prompt_tokens":1000,"completion_tokens":100}}`))
	}))
	defer server.Close()

	client := New("sk-test", "gpt-5-mini", Options{
		BaseURL:           server.URL,
		Temperature:       0.3,
		MaxTokens:         9000,
		TemperaturePolicy: common.TemperaturePolicy{RestrictedPrefixes: common.DefaultRestrictedPrefixes},
	})
	out, err := client.Complete(context.Background(), "title", domain.CompletionOptions{Temperature: domain.Temperature(0.7)})
	require.NoError(t, err)
	require.Equal(t, "Invoice ACME", out.Text)
	require.Equal(t, 1100, out.TokensUsed())
	require.InDelta(t, 1000.0/1e6*10+100.0/1e6*30, out.Cost, 1e-12)

	_, hasTemperature := payload["temperature"]
	require.False(t, hasTemperature)
	require.Equal(t, float64(9000), payload["max_completion_tokens"])
}

func TestCompleteSendsTemperatureForUnrestrictedModels(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer server.Close()

	client := New("k", "gpt-4", Options{
		BaseURL:           server.URL,
		Temperature:       0.3,
		TemperaturePolicy: common.TemperaturePolicy{RestrictedPrefixes: common.DefaultRestrictedPrefixes},
	})
	_, err := client.Complete(context.Background(), "p", domain.CompletionOptions{System: "be brief"})
	require.NoError(t, err)
	require.Equal(t, 0.3, payload["temperature"])
	messages := payload["messages"].([]any)
	require.Len(t, messages, 2)
	require.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestCompleteStructuredForcesFunctionCall(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"update_document","arguments":"{\"title\":\"Rechnung Stadtwerke\",\"tags\":[\"utility\"]}"}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":50,"completion_tokens":20}}`))
	}))
	defer server.Close()

	schema := map[string]any{
		"title":      "update_document",
		"type":       "object",
		"properties": map[string]any{"title": map[string]any{"type": "string"}},
		"required":   []string{"title"},
	}
	client := New("k", "gpt-4", Options{BaseURL: server.URL})
	out, err := client.CompleteStructured(context.Background(), "p", schema, domain.CompletionOptions{})
	require.NoError(t, err)
	require.Equal(t, "Rechnung Stadtwerke", out.Data["title"])
	require.Equal(t, 70, out.TokensUsed())

	choice := payload["tool_choice"].(map[string]any)
	require.Equal(t, "update_document", choice["function"].(map[string]any)["name"])
	params := payload["tools"].([]any)[0].(map[string]any)["function"].(map[string]any)["parameters"].(map[string]any)
	_, hasTitle := params["title"]
	require.False(t, hasTitle)
}

func TestStatusErrorsMapToDomainKinds(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusServiceUnavailable, domain.ErrTemporary},
		{http.StatusBadRequest, domain.ErrApplication},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"nope"}}`, tc.status)
		}))
		client := New("k", "gpt-4", Options{BaseURL: server.URL})
		_, err := client.Complete(context.Background(), "p", domain.CompletionOptions{})
		server.Close()
		require.Error(t, err)
		require.True(t, domain.IsKind(err, tc.kind), "status %d: %v", tc.status, err)
	}
}

func TestEmptyChoicesIsApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := New("k", "gpt-4", Options{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "p", domain.CompletionOptions{})
	require.True(t, domain.IsKind(err, domain.ErrApplication))
}
