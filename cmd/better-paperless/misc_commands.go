package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	mcpadapter "github.com/Kenny1338/better-paperless-ngx/internal/adapters/mcp"
	"github.com/Kenny1338/better-paperless-ngx/internal/bootstrap"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/queue/nats"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "better-paperless %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

func newTestConnectionCommand(ctx *commandContext) *cobra.Command {
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check connectivity to paperless-ngx and the LLM provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.validConfig()
			if err != nil {
				return err
			}

			var rows [][]string
			var failed []string
			check := func(name string, fn func(context.Context) (string, error)) {
				detail, err := fn(cmd.Context())
				if err != nil {
					rows = append(rows, []string{name, "failed", err.Error()})
					failed = append(failed, name)
					return
				}
				rows = append(rows, []string{name, "ok", detail})
			}

			backend := bootstrap.NewBackend(cfg)
			check("paperless", func(ctx context.Context) (string, error) {
				if err := backend.Ping(ctx); err != nil {
					return "", err
				}
				tags, err := backend.ListTags(ctx)
				if err != nil {
					return "", err
				}
				correspondents, err := backend.ListCorrespondents(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s (%d tags, %d correspondents)", cfg.Paperless.URL, len(tags), len(correspondents)), nil
			})

			if !skipLLM {
				check("llm", func(ctx context.Context) (string, error) {
					app, err := bootstrap.New(ctx, cfg)
					if err != nil {
						return "", err
					}
					defer app.Close()
					completion, err := app.LLM.Complete(ctx, "Reply with the single word OK.", domain.CompletionOptions{MaxTokens: 10})
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%s/%s answered %q", cfg.LLM.Provider, app.LLM.Model(), strings.TrimSpace(completion.Text)), nil
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if len(failed) > 0 {
				return fmt.Errorf("connection test failed: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Only check the paperless connection")
	return cmd
}

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve processing tools over the Model Context Protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				srv := mcpadapter.NewServer(app.Staged, app.Agentic, app, mcpadapter.Options{
					Name:               serviceName,
					Version:            version,
					DefaultConcurrency: app.Config.Processing.Concurrency,
				})
				return srv.ServeStdio()
			})
		},
	}
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ask a running listener to sync now over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.NATS.Enabled {
				return errors.New("nats is disabled; enable nats.enabled or send SIGUSR1 to the listener")
			}

			retryOnFailedConnect := false
			bus, err := nats.New(cfg.NATS.URL, nats.Options{
				ResultSubject:        cfg.NATS.ResultSubject,
				SyncSubject:          cfg.NATS.SyncSubject,
				MaxReconnects:        1,
				RetryOnFailedConnect: &retryOnFailedConnect,
				ResilienceExecutor:   resilience.NewExecutor(resilience.DefaultConfig()),
			})
			if err != nil {
				return err
			}
			defer bus.Close()

			if err := bus.RequestSync(cmd.Context(), reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sync requested on %s\n", strconv.Quote(cfg.NATS.SyncSubject))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "cli", "Reason recorded by the listener")
	return cmd
}
