package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kenny1338/better-paperless-ngx/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configPath()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "Config file did not exist; defaults and environment were used")
			}
			if _, err := ctx.validConfig(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, configRows(cfg), nil))
			return nil
		},
	}
}

func configRows(cfg config.Config) [][]string {
	p := cfg.Provider()
	features := cfg.Processing.Features
	rows := [][]string{
		{"paperless.url", cfg.Paperless.URL},
		{"paperless.token", maskSecret(cfg.Paperless.Token)},
		{"paperless.timeout", cfg.Paperless.Timeout.String()},
		{"llm.provider", cfg.LLM.Provider},
		{"llm.model", p.Model},
		{"llm.api_key", maskSecret(p.APIKey)},
		{"llm.temperature", strconv.FormatFloat(p.Temperature, 'f', -1, 64)},
		{"llm.max_tokens", strconv.Itoa(p.MaxTokens)},
		{"processing.title_generation", yesNo(features.TitleGeneration)},
		{"processing.tagging", yesNo(features.Tagging)},
		{"processing.metadata_extraction", yesNo(features.MetadataExtraction)},
		{"processing.categorization", yesNo(features.Categorization)},
		{"processing.summarization", yesNo(features.Summarization)},
		{"processing.processed_tag", cfg.Processing.ProcessedTag},
		{"processing.action_tag", cfg.Processing.ActionTag},
		{"processing.concurrency", strconv.Itoa(cfg.Processing.Concurrency)},
		{"tagging.max_tags", strconv.Itoa(cfg.Tagging.MaxTags)},
		{"listener.interval", cfg.Listener.Interval.String()},
		{"listener.schedule", cfg.Listener.Schedule},
		{"cache", cacheDescription(cfg.Cache)},
		{"nats.enabled", yesNo(cfg.NATS.Enabled)},
		{"control.addr", cfg.Control.Addr},
		{"logging.level", cfg.Logging.Level},
	}
	if cfg.NATS.Enabled {
		rows = append(rows, []string{"nats.url", cfg.NATS.URL})
	}
	return rows
}

func cacheDescription(cfg config.CacheConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%s (ttl %s)", cfg.Backend, cfg.TTL)
}

// maskSecret keeps the last four characters of secrets longer than eight.
func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

func newInitCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ctx.configPath()
			if !force {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --force to replace it)", target)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}
			if err := os.WriteFile(target, []byte(config.DefaultYAML()), 0o600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote default configuration to %s\n", target)
			fmt.Fprintln(out, "Set paperless.token (or PAPERLESS_API_TOKEN) and the API key of your LLM provider before processing.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}
