package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Kenny1338/better-paperless-ngx/internal/bootstrap"
	"github.com/Kenny1338/better-paperless-ngx/internal/config"
	"github.com/Kenny1338/better-paperless-ngx/internal/observability/logging"
)

const serviceName = "better-paperless"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil || strings.TrimSpace(*c.configFlag) == "" {
		return config.DefaultPath
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// validConfig loads the configuration and rejects it when invalid.
func (c *commandContext) validConfig() (config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// withApp runs fn against a fully wired application and closes it after.
func (c *commandContext) withApp(ctx context.Context, fn func(*bootstrap.App) error) error {
	cfg, err := c.validConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()
	return fn(app)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "better-paperless",
		Short:         "LLM metadata enrichment for paperless-ngx",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, format := logLevelFlag, "json"
			if !shouldSkipConfig(cmd) {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				level, format = cfg.Logging.Level, cfg.Logging.Format
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), serviceName, level, format))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newAgenticCommand(ctx))
	rootCmd.AddCommand(newListenCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newTestConnectionCommand(ctx))
	rootCmd.AddCommand(newMCPCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
