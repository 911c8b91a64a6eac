package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

// clearEnv blanks variables that would override the test config files.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PAPERLESS_API_URL", "PAPERLESS_API_TOKEN", "LLM_PROVIDER",
		"CACHE_ENABLED", "CACHE_BACKEND", "NATS_ENABLED", "CONTROL_ADDR", "LOG_LEVEL",
	}
	for _, prefix := range []string{"OPENAI", "ANTHROPIC", "OLLAMA", "GEMINI"} {
		keys = append(keys, prefix+"_API_KEY", prefix+"_BASE_URL", prefix+"_MODEL")
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	clearEnv(t)
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionSkipsConfig(t *testing.T) {
	out, _, err := runCLI(t, []string{"version"}, filepath.Join(t.TempDir(), "broken.yaml"))
	require.NoError(t, err)
	require.Contains(t, out, "better-paperless dev")
}

func TestInitWritesDefaultsAndRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, _, err := runCLI(t, []string{"init"}, target)
	require.NoError(t, err)
	require.Contains(t, out, "Wrote default configuration")
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Contains(t, string(raw), "processed_tag: bp-processed")

	_, _, err = runCLI(t, []string{"init"}, target)
	require.ErrorContains(t, err, "already exists")

	_, _, err = runCLI(t, []string{"init", "--force"}, target)
	require.NoError(t, err)
}

func TestConfigValidateReportsProblems(t *testing.T) {
	path := writeConfig(t, "paperless:\n  token: short\nllm:\n  provider: openai\n")

	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "paperless.token")
	require.Contains(t, err.Error(), "llm.openai.api_key")
}

func TestConfigValidateAcceptsCompleteConfig(t *testing.T) {
	path := writeConfig(t, `paperless:
  token: paperless-token-123
llm:
  provider: anthropic
  anthropic:
    api_key: sk-ant-test
`)

	out, _, err := runCLI(t, []string{"config", "validate"}, path)
	require.NoError(t, err)
	require.Contains(t, out, "Configuration valid")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	path := writeConfig(t, `paperless:
  token: paperless-token-9876
llm:
  provider: openai
  openai:
    api_key: sk-secret-abcd
`)

	out, _, err := runCLI(t, []string{"config", "show"}, path)
	require.NoError(t, err)
	require.Contains(t, out, "****9876")
	require.Contains(t, out, "****abcd")
	require.NotContains(t, out, "paperless-token-9876")
	require.NotContains(t, out, "sk-secret-abcd")
}

func TestParseFilters(t *testing.T) {
	query, err := parseFilters([]string{"correspondent__id=3", " title__icontains = strom "})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"correspondent__id": "3", "title__icontains": "strom"}, query)

	_, err = parseFilters([]string{"novalue"})
	require.Error(t, err)
	_, err = parseFilters([]string{"=3"})
	require.Error(t, err)
}

func TestMaskSecret(t *testing.T) {
	require.Equal(t, "(not set)", maskSecret(" "))
	require.Equal(t, "****", maskSecret("short"))
	require.Equal(t, "****6789", maskSecret("abcdef0123456789"))
}

func TestBatchErrorOnlyOnFailures(t *testing.T) {
	require.NoError(t, batchError(domain.BatchSummary{Total: 3, Succeeded: 2, Skipped: 1}))
	require.EqualError(t, batchError(domain.BatchSummary{Total: 3, Failed: 1}), "1 of 3 documents failed")
}

func TestProcessRejectsInvalidID(t *testing.T) {
	_, _, err := runCLI(t, []string{"process", "abc"}, writeConfig(t, ""))
	require.ErrorContains(t, err, "invalid document id")
}

type paperlessStub struct {
	mu      sync.Mutex
	nextTag int
	tags    []map[string]any
	patches []map[string]any
}

func (s *paperlessStub) handler(t *testing.T) http.Handler {
	list := func(w http.ResponseWriter, results any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"count": 1, "next": nil, "results": results})
	}
	doc := map[string]any{
		"id":                 7,
		"title":              "scan_001.pdf",
		"original_file_name": "scan_001.pdf",
		"tags":               []int{},
		"content":            "Stadtwerke München\nRechnung Nr. 4711\nDatum: 05.03.2024\nBetrag: 84,20 EUR",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/documents/7/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode patch: %v", err)
			}
			s.mu.Lock()
			s.patches = append(s.patches, body)
			s.mu.Unlock()
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("/api/tags/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.Method == http.MethodPost {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			s.nextTag++
			tag := map[string]any{"id": s.nextTag, "name": body["name"]}
			s.tags = append(s.tags, tag)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(tag)
			return
		}
		list(w, s.tags)
	})
	mux.HandleFunc("/api/correspondents/", func(w http.ResponseWriter, r *http.Request) {
		list(w, []map[string]any{{"id": 5, "name": "Stadtwerke München"}})
	})
	mux.HandleFunc("/api/document_types/", func(w http.ResponseWriter, r *http.Request) {
		list(w, []map[string]any{})
	})
	return mux
}

func newOllamaStub(t *testing.T) *httptest.Server {
	decision := map[string]any{
		"title":           "Stromrechnung März 2024",
		"tags":            []string{"rechnung"},
		"correspondent":   "Stadtwerke München",
		"document_date":   "2024-03-05",
		"requires_action": false,
		"reasoning":       "Monthly electricity invoice from the municipal utility, dated 5 March 2024, already settled by direct debit.",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode generate request: %v", err)
		}
		response := "OK"
		if _, structured := body["format"]; structured {
			raw, _ := json.Marshal(decision)
			response = string(raw)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":          response,
			"done_reason":       "stop",
			"prompt_eval_count": 120,
			"eval_count":        40,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessAgenticEndToEnd(t *testing.T) {
	stub := &paperlessStub{nextTag: 1, tags: []map[string]any{{"id": 1, "name": "bp-processed"}}}
	paperless := httptest.NewServer(stub.handler(t))
	t.Cleanup(paperless.Close)
	ollama := newOllamaStub(t)

	path := writeConfig(t, fmt.Sprintf(`paperless:
  url: %s
  token: paperless-token-123
llm:
  provider: ollama
  ollama:
    base_url: %s
    model: llama3
cache:
  enabled: false
logging:
  level: error
`, paperless.URL, ollama.URL))

	out, _, err := runCLI(t, []string{"process", "7", "--agentic", "--json"}, path)
	require.NoError(t, err)

	var result domain.ProcessingResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.True(t, result.Success, "errors: %v", result.Errors)
	require.Equal(t, "agentic", result.Strategy)
	require.Equal(t, "Stromrechnung März 2024", result.Title)
	require.Equal(t, 160, result.TokensUsed)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.patches, 1, "exactly one write-back per document")
	patch := stub.patches[0]
	require.Equal(t, "Stromrechnung März 2024", patch["title"])
	require.EqualValues(t, 5, patch["correspondent"])
	require.Equal(t, "2024-03-05", patch["created_date"])
	require.ElementsMatch(t, []any{float64(2), float64(1)}, patch["tags"])
}
