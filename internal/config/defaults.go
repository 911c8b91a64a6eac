package config

import "time"

func Defaults() Config {
	return Config{
		Paperless: PaperlessConfig{
			URL:        "http://localhost:8000",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			PageSize:   100,
		},
		LLM: LLMConfig{
			Provider:                      "openai",
			Timeout:                       120 * time.Second,
			RestrictedTemperaturePrefixes: []string{"o1", "gpt-5"},
			OpenAI:                        ProviderConfig{Model: "gpt-5-mini", Temperature: 0.3, MaxTokens: 9000},
			Anthropic:                     ProviderConfig{Model: "claude-3-sonnet-20240229", Temperature: 0.3, MaxTokens: 2000},
			Ollama:                        ProviderConfig{BaseURL: "http://localhost:11434", Model: "llama2", Temperature: 0.3, MaxTokens: 2000},
			Gemini:                        ProviderConfig{Model: "gemini-2.0-flash", Temperature: 0.3, MaxTokens: 2000},
		},
		Processing: ProcessingConfig{
			Features: FeatureToggles{
				TitleGeneration:    true,
				Tagging:            true,
				MetadataExtraction: true,
				Categorization:     true,
			},
			SkipIfTitleExists:  true,
			SkipIfProcessedTag: true,
			ProcessedTag:       "bp-processed",
			ActionTag:          "offen",
			RetryAttempts:      3,
			RetryDelay:         2 * time.Second,
			Concurrency:        5,
		},
		Tagging: TaggingConfig{
			RuleBased:           true,
			LLMBased:            true,
			ConfidenceThreshold: 0.7,
			MaxTags:             10,
			DefaultColor:        "#3498db",
		},
		Summarization: SummarizationConfig{MaxLength: 500, Style: "concise"},
		Listener: ListenerConfig{
			Interval:     12 * time.Hour,
			PollInterval: 30 * time.Second,
			ListLimit:    1000,
		},
		Cache: CacheConfig{Enabled: true, Backend: "memory", TTL: time.Hour},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			ResultSubject: "paperless.documents.processed",
			SyncSubject:   "paperless.listener.sync",
		},
		Control: ControlConfig{RateLimitRPS: 5, RateLimitBurst: 10, MaxInFlight: 4},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// DefaultYAML is the file written by the init command. Loading it yields
// Defaults().
func DefaultYAML() string {
	return `paperless:
  url: http://localhost:8000
  token: ""
  timeout: 30s
  max_retries: 3
  page_size: 100

llm:
  provider: openai
  timeout: 2m
  restricted_temperature_prefixes: [o1, gpt-5]
  openai:
    model: gpt-5-mini
    temperature: 0.3
    max_tokens: 9000
  anthropic:
    model: claude-3-sonnet-20240229
    temperature: 0.3
    max_tokens: 2000
  ollama:
    base_url: http://localhost:11434
    model: llama2
    temperature: 0.3
    max_tokens: 2000
  gemini:
    model: gemini-2.0-flash
    temperature: 0.3
    max_tokens: 2000

processing:
  features:
    title_generation: true
    tagging: true
    metadata_extraction: true
    categorization: true
    summarization: false
  skip_if_title_exists: true
  skip_if_tags_exist: false
  skip_if_processed_tag: true
  processed_tag: bp-processed
  action_tag: offen
  retry_attempts: 3
  retry_delay: 2s
  concurrency: 5

tagging:
  rule_based: true
  llm_based: true
  confidence_threshold: 0.7
  max_tags: 10
  default_color: "#3498db"

summarization:
  max_length: 500
  style: concise

listener:
  interval: 12h
  schedule: ""
  poll_interval: 30s
  list_limit: 1000

cache:
  enabled: true
  backend: memory
  ttl: 1h
  postgres_dsn: ""

nats:
  enabled: false
  url: nats://localhost:4222
  result_subject: paperless.documents.processed
  sync_subject: paperless.listener.sync

control:
  addr: ""
  rate_limit_rps: 5
  rate_limit_burst: 10
  max_in_flight: 4

logging:
  level: info
  format: json
`
}
