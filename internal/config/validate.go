package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const minTokenLength = 11

// Validate checks field ranges and the credentials the selected provider
// needs. All violations are reported together.
func (c Config) Validate() error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if len(strings.TrimSpace(c.Paperless.Token)) < minTokenLength {
		problems = append(problems, "paperless.token: must be longer than 10 characters")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "gemini":
		if strings.TrimSpace(c.Provider().APIKey) == "" {
			problems = append(problems, fmt.Sprintf("llm.%s.api_key: required for provider %s", c.LLM.Provider, c.LLM.Provider))
		}
	case "ollama":
		if strings.TrimSpace(c.LLM.Ollama.BaseURL) == "" {
			problems = append(problems, "llm.ollama.base_url: required for provider ollama")
		}
	}
	if c.Cache.Enabled && c.Cache.Backend == "postgres" && strings.TrimSpace(c.Cache.PostgresDSN) == "" {
		problems = append(problems, "cache.postgres_dsn: required for backend postgres")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	if fe.Param() == "" {
		return fmt.Sprintf("%s: failed %q", field, fe.Tag())
	}
	return fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
}
