package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/Kenny1338/better-paperless-ngx/internal/adapters/http"
	"github.com/Kenny1338/better-paperless-ngx/internal/bootstrap"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/usecase"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/queue/nats"
	"github.com/Kenny1338/better-paperless-ngx/internal/observability/metrics"
)

const controlShutdownTimeout = 10 * time.Second

type listenOptions struct {
	interval    time.Duration
	schedule    string
	poll        time.Duration
	concurrency int
	agentic     bool
	interactive bool
	controlAddr string
}

func newListenCommand(ctx *commandContext) *cobra.Command {
	var opts listenOptions

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Process new documents on a schedule until stopped",
		Long: "Process new documents on a schedule until stopped. SIGUSR1 triggers an " +
			"immediate sync and SIGINT or SIGTERM stop after the running batch.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *bootstrap.App) error {
				return runListener(cmd, app, opts)
			})
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Time between scheduled syncs (default from config)")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "Cron expression replacing --interval")
	cmd.Flags().DurationVar(&opts.poll, "poll", 0, "Command poll interval (default from config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Documents processed in parallel (default from config)")
	cmd.Flags().BoolVar(&opts.agentic, "agentic", false, "Use the single-call agentic strategy")
	cmd.Flags().BoolVar(&opts.interactive, "interactive", false, "Read commands from stdin: s = sync, q = quit")
	cmd.Flags().StringVar(&opts.controlAddr, "control-addr", "", "Serve health, metrics, sync and webhook endpoints on this address")
	return cmd
}

func runListener(cmd *cobra.Command, app *bootstrap.App, opts listenOptions) error {
	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	control := bootstrap.NewListenerControl()
	processor := app.Processor(opts.agentic)
	listener := app.NewListener(processor, control, usecase.ListenerConfig{
		Interval:     opts.interval,
		Schedule:     opts.schedule,
		PollInterval: opts.poll,
		Concurrency:  opts.concurrency,
	})

	stopSignals := watchSignals(runCtx, control, cancel)
	defer stopSignals()

	if opts.interactive {
		go readInteractive(runCtx, cmd.InOrStdin(), control)
		fmt.Fprintln(cmd.OutOrStdout(), "Interactive mode: s + Enter syncs now, q + Enter quits")
	}

	if app.Bus != nil {
		go func() {
			err := app.Bus.SubscribeSync(runCtx, func(ctx context.Context, req nats.SyncRequest) {
				if err := control.TriggerSync(ctx); err != nil {
					slog.Warn("remote_sync_dropped", "reason", req.Reason, "error", err)
					return
				}
				slog.Info("remote_sync_requested", "reason", req.Reason)
			})
			if err != nil {
				slog.Error("sync_subscription_failed", "subject", app.Config.NATS.SyncSubject, "error", err)
			}
		}()
	}

	addr := opts.controlAddr
	if addr == "" {
		addr = app.Config.Control.Addr
	}
	var server *http.Server
	if addr != "" {
		server = startControlServer(app, processor, control, addr)
	}

	err := listener.Run(runCtx)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), controlShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("control_shutdown_failed", "error", err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchSignals maps SIGINT/SIGTERM to a graceful stop and a second one to
// cancellation. Platform sync signals trigger a manual sync.
func watchSignals(ctx context.Context, control *bootstrap.ListenerControl, cancel context.CancelFunc) func() {
	signals := make(chan os.Signal, 4)
	signal.Notify(signals, append([]os.Signal{os.Interrupt, syscall.SIGTERM}, syncSignals...)...)

	go func() {
		stopping := false
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-signals:
				if isSyncSignal(sig) {
					if err := control.TriggerSync(ctx); err != nil {
						slog.Warn("signal_sync_dropped", "error", err)
					}
					continue
				}
				if stopping {
					slog.Warn("forced_shutdown", "signal", sig.String())
					cancel()
					return
				}
				stopping = true
				slog.Info("shutdown_requested", "signal", sig.String())
				control.Stop(ctx)
			}
		}
	}()

	return func() { signal.Stop(signals) }
}

func isSyncSignal(sig os.Signal) bool {
	for _, s := range syncSignals {
		if s == sig {
			return true
		}
	}
	return false
}

func readInteractive(ctx context.Context, in io.Reader, control *bootstrap.ListenerControl) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "s", "sync":
			if err := control.TriggerSync(ctx); err != nil {
				slog.Warn("interactive_sync_dropped", "error", err)
			}
		case "q", "quit", "exit":
			control.Stop(ctx)
			return
		case "":
		default:
			slog.Info("interactive_unknown_command", "input", scanner.Text())
		}
	}
}

func startControlServer(app *bootstrap.App, processor *usecase.Processor, control *bootstrap.ListenerControl, addr string) *http.Server {
	router := httpadapter.NewRouter(
		processor,
		control,
		metrics.NewHTTPServerMetrics(serviceName, app.Registry),
		metrics.Handler(app.Registry),
		httpadapter.Config{
			Service:        serviceName,
			RateLimitRPS:   app.Config.Control.RateLimitRPS,
			RateLimitBurst: app.Config.Control.RateLimitBurst,
			MaxInFlight:    app.Config.Control.MaxInFlight,
		},
	)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("control_listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control_server_failed", "addr", addr, "error", err)
		}
	}()
	return server
}
