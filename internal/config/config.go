package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type Config struct {
	Paperless     PaperlessConfig     `yaml:"paperless"`
	LLM           LLMConfig           `yaml:"llm"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Tagging       TaggingConfig       `yaml:"tagging"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Listener      ListenerConfig      `yaml:"listener"`
	Cache         CacheConfig         `yaml:"cache"`
	NATS          NATSConfig          `yaml:"nats"`
	Control       ControlConfig       `yaml:"control"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type PaperlessConfig struct {
	URL        string        `yaml:"url" validate:"required,url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=1,lte=10"`
	PageSize   int           `yaml:"page_size" validate:"gte=1,lte=1000"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider" validate:"oneof=openai anthropic ollama gemini"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	// Models whose name starts with one of these prefixes get no temperature.
	RestrictedTemperaturePrefixes []string       `yaml:"restricted_temperature_prefixes"`
	OpenAI                        ProviderConfig `yaml:"openai"`
	Anthropic                     ProviderConfig `yaml:"anthropic"`
	Ollama                        ProviderConfig `yaml:"ollama"`
	Gemini                        ProviderConfig `yaml:"gemini"`
}

type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=1,lte=100000"`
}

type FeatureToggles struct {
	TitleGeneration    bool `yaml:"title_generation"`
	Tagging            bool `yaml:"tagging"`
	MetadataExtraction bool `yaml:"metadata_extraction"`
	Categorization     bool `yaml:"categorization"`
	Summarization      bool `yaml:"summarization"`
}

type ProcessingConfig struct {
	Features           FeatureToggles `yaml:"features"`
	SkipIfTitleExists  bool           `yaml:"skip_if_title_exists"`
	SkipIfTagsExist    bool           `yaml:"skip_if_tags_exist"`
	SkipIfProcessedTag bool           `yaml:"skip_if_processed_tag"`
	ProcessedTag       string         `yaml:"processed_tag" validate:"required"`
	ActionTag          string         `yaml:"action_tag" validate:"required"`
	RetryAttempts      int            `yaml:"retry_attempts" validate:"gte=1,lte=10"`
	RetryDelay         time.Duration  `yaml:"retry_delay" validate:"gt=0"`
	Concurrency        int            `yaml:"concurrency" validate:"gte=1,lte=50"`
}

type TaggingConfig struct {
	RuleBased           bool    `yaml:"rule_based"`
	LLMBased            bool    `yaml:"llm_based"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	MaxTags             int     `yaml:"max_tags" validate:"gte=1,lte=50"`
	DefaultColor        string  `yaml:"default_color" validate:"hexcolor"`
}

type SummarizationConfig struct {
	MaxLength int    `yaml:"max_length" validate:"gte=50,lte=5000"`
	Style     string `yaml:"style" validate:"oneof=concise detailed bullet_points"`
}

type ListenerConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	// Schedule is a cron expression that replaces Interval when set.
	Schedule     string        `yaml:"schedule"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	ListLimit    int           `yaml:"list_limit" validate:"gte=1"`
}

type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Backend     string        `yaml:"backend" validate:"oneof=memory postgres"`
	TTL         time.Duration `yaml:"ttl" validate:"gt=0"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url" validate:"required"`
	ResultSubject string `yaml:"result_subject" validate:"required"`
	SyncSubject   string `yaml:"sync_subject" validate:"required"`
}

type ControlConfig struct {
	Addr           string  `yaml:"addr"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" validate:"gte=0"`
	MaxInFlight    int     `yaml:"max_in_flight" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Load layers built-in defaults, the YAML file at path, an optional .env file
// and the process environment, in that order. A missing YAML file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Provider returns the settings block of the selected LLM provider.
func (c Config) Provider() ProviderConfig {
	switch c.LLM.Provider {
	case "anthropic":
		return c.LLM.Anthropic
	case "ollama":
		return c.LLM.Ollama
	case "gemini":
		return c.LLM.Gemini
	default:
		return c.LLM.OpenAI
	}
}

func applyEnv(cfg *Config) {
	cfg.Paperless.URL = mustEnv("PAPERLESS_API_URL", cfg.Paperless.URL)
	cfg.Paperless.Token = mustEnv("PAPERLESS_API_TOKEN", cfg.Paperless.Token)
	cfg.Paperless.Timeout = mustEnvDuration("PAPERLESS_TIMEOUT", cfg.Paperless.Timeout)
	cfg.Paperless.MaxRetries = mustEnvInt("PAPERLESS_MAX_RETRIES", cfg.Paperless.MaxRetries)

	cfg.LLM.Provider = mustEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Timeout = mustEnvDuration("LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.RestrictedTemperaturePrefixes = mustEnvList("LLM_RESTRICTED_TEMPERATURE_PREFIXES", cfg.LLM.RestrictedTemperaturePrefixes)
	applyProviderEnv("OPENAI", &cfg.LLM.OpenAI)
	applyProviderEnv("ANTHROPIC", &cfg.LLM.Anthropic)
	applyProviderEnv("OLLAMA", &cfg.LLM.Ollama)
	applyProviderEnv("GEMINI", &cfg.LLM.Gemini)

	cfg.Processing.RetryAttempts = mustEnvInt("PROCESSING_RETRY_ATTEMPTS", cfg.Processing.RetryAttempts)
	cfg.Processing.Concurrency = mustEnvInt("PROCESSING_CONCURRENCY", cfg.Processing.Concurrency)
	cfg.Processing.ProcessedTag = mustEnv("PROCESSING_PROCESSED_TAG", cfg.Processing.ProcessedTag)

	cfg.Listener.Interval = mustEnvDuration("LISTENER_INTERVAL", cfg.Listener.Interval)
	cfg.Listener.Schedule = mustEnv("LISTENER_SCHEDULE", cfg.Listener.Schedule)

	cfg.Cache.Enabled = mustEnvBool("CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.Backend = mustEnv("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.PostgresDSN = mustEnv("POSTGRES_DSN", cfg.Cache.PostgresDSN)

	cfg.NATS.Enabled = mustEnvBool("NATS_ENABLED", cfg.NATS.Enabled)
	cfg.NATS.URL = mustEnv("NATS_URL", cfg.NATS.URL)

	cfg.Control.Addr = mustEnv("CONTROL_ADDR", cfg.Control.Addr)
	cfg.Logging.Level = mustEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = mustEnv("LOG_FORMAT", cfg.Logging.Format)
}

func applyProviderEnv(prefix string, p *ProviderConfig) {
	p.APIKey = mustEnv(prefix+"_API_KEY", p.APIKey)
	p.BaseURL = mustEnv(prefix+"_BASE_URL", p.BaseURL)
	p.Model = mustEnv(prefix+"_MODEL", p.Model)
	p.Temperature = mustEnvFloat(prefix+"_TEMPERATURE", p.Temperature)
	p.MaxTokens = mustEnvInt(prefix+"_MAX_TOKENS", p.MaxTokens)
}
