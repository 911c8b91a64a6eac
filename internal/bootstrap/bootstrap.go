package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kenny1338/better-paperless-ngx/internal/config"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/usecase"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/cache/memory"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/factory"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/paperless"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/queue/nats"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/repository/postgres"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
	"github.com/Kenny1338/better-paperless-ngx/internal/observability/metrics"
)

const serviceName = "better-paperless"

type App struct {
	Config config.Config

	Backend  *paperless.Client
	LLM      ports.LLMProvider
	Registry *prometheus.Registry
	Metrics  *metrics.ProcessingMetrics
	// Bus is nil when NATS is disabled.
	Bus *nats.Bus

	Staged  *usecase.Processor
	Agentic *usecase.Processor

	closeFns []func()
}

// NewBackend builds the paperless gateway with the backend retry policy.
func NewBackend(cfg config.Config) *paperless.Client {
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.Paperless.MaxRetries
	return paperless.New(cfg.Paperless.URL, cfg.Paperless.Token, paperless.Options{
		Timeout:            cfg.Paperless.Timeout,
		ResilienceExecutor: resilience.NewExecutor(policy),
		PageSize:           cfg.Paperless.PageSize,
	})
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Backend:  NewBackend(cfg),
		Registry: metrics.NewRegistry(),
	}
	app.Metrics = metrics.NewProcessingMetrics(serviceName, app.Registry)

	cache, err := app.openCache(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	llm, err := factory.New(ctx, cfg, resilience.NewExecutor(resilience.BreakerOnlyConfig()), cache)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	app.LLM = llm

	var publisher ports.ResultPublisher
	if cfg.NATS.Enabled {
		bus, err := nats.New(cfg.NATS.URL, nats.Options{
			ResultSubject:      cfg.NATS.ResultSubject,
			SyncSubject:        cfg.NATS.SyncSubject,
			ResilienceExecutor: resilience.NewExecutor(resilience.BreakerOnlyConfig()),
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message bus: %w", err)
		}
		app.Bus = bus
		app.closeFns = append(app.closeFns, bus.Close)
		publisher = bus
	}

	reconciler := usecase.NewReconciler(app.Backend, usecase.ReconcilerConfig{
		ProcessedTag:    cfg.Processing.ProcessedTag,
		ActionTag:       cfg.Processing.ActionTag,
		DefaultTagColor: cfg.Tagging.DefaultColor,
	})
	processorCfg := usecase.ProcessorConfig{
		ProcessedTag:       cfg.Processing.ProcessedTag,
		SkipIfProcessedTag: cfg.Processing.SkipIfProcessedTag,
	}
	app.Staged = usecase.NewProcessor(app.Backend, newStagedStrategy(cfg, llm), reconciler, publisher, app.Metrics, processorCfg)
	app.Agentic = usecase.NewProcessor(app.Backend, usecase.NewAgenticStrategy(llm), reconciler, publisher, app.Metrics, processorCfg)

	slog.Info("app_initialized",
		"llm_provider", cfg.LLM.Provider,
		"model", llm.Model(),
		"cache", cacheLabel(cfg.Cache),
		"nats", cfg.NATS.Enabled,
	)
	return app, nil
}

func newStagedStrategy(cfg config.Config, llm ports.LLMProvider) *usecase.StagedStrategy {
	return usecase.NewStagedStrategy(
		usecase.NewTitleGenerator(llm),
		usecase.NewMetadataExtractor(llm),
		usecase.NewTagEngine(llm, usecase.DefaultTagRules(), usecase.TagEngineConfig{
			RuleBased: cfg.Tagging.RuleBased,
			LLMBased:  cfg.Tagging.LLMBased,
			MaxTags:   cfg.Tagging.MaxTags,
		}),
		usecase.NewCorrespondentMatcher(llm),
		usecase.NewCategorizer(llm),
		usecase.NewSummarizer(llm, usecase.SummaryConfig{
			MaxLength: cfg.Summarization.MaxLength,
			Style:     cfg.Summarization.Style,
		}),
		usecase.StagedConfig{
			Features: usecase.StagedFeatures{
				TitleGeneration:    cfg.Processing.Features.TitleGeneration,
				Tagging:            cfg.Processing.Features.Tagging,
				MetadataExtraction: cfg.Processing.Features.MetadataExtraction,
				Categorization:     cfg.Processing.Features.Categorization,
				Summarization:      cfg.Processing.Features.Summarization,
			},
			SkipIfTitleExists: cfg.Processing.SkipIfTitleExists,
			SkipIfTagsExist:   cfg.Processing.SkipIfTagsExist,
		},
	)
}

// openCache returns nil when caching is disabled.
func (a *App) openCache(ctx context.Context) (ports.CompletionCache, error) {
	cfg := a.Config.Cache
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Backend != "postgres" {
		return memory.New(), nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })

	cache := postgres.NewCompletionCache(db)
	if err := cache.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}
	pruned, err := cache.Prune(ctx)
	if err != nil {
		slog.Warn("cache_prune_failed", "error", err)
	} else if pruned > 0 {
		slog.Info("cache_pruned", "entries", pruned)
	}
	return cache, nil
}

func cacheLabel(cfg config.CacheConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return cfg.Backend
}

// Processor returns the agentic or the staged processor.
func (a *App) Processor(agentic bool) *usecase.Processor {
	if agentic {
		return a.Agentic
	}
	return a.Staged
}

// ListUnprocessed returns up to limit IDs of documents without the processed tag.
func (a *App) ListUnprocessed(ctx context.Context, limit int) ([]int, error) {
	return usecase.ListUnprocessed(ctx, a.Backend, a.Config.Processing.ProcessedTag, limit)
}

// NewListener builds a listener around processor. Zero fields in overrides
// fall back to the configured listener settings.
func (a *App) NewListener(processor ports.DocumentProcessor, control *ListenerControl, overrides usecase.ListenerConfig) *usecase.Listener {
	cfg := usecase.ListenerConfig{
		Interval:     a.Config.Listener.Interval,
		Schedule:     a.Config.Listener.Schedule,
		PollInterval: a.Config.Listener.PollInterval,
		ListLimit:    a.Config.Listener.ListLimit,
		Concurrency:  a.Config.Processing.Concurrency,
	}
	if overrides.Interval > 0 {
		cfg.Interval = overrides.Interval
		cfg.Schedule = ""
	}
	if overrides.Schedule != "" {
		cfg.Schedule = overrides.Schedule
	}
	if overrides.PollInterval > 0 {
		cfg.PollInterval = overrides.PollInterval
	}
	if overrides.Concurrency > 0 {
		cfg.Concurrency = overrides.Concurrency
	}
	return usecase.NewListener(a.Backend, processor, usecase.NewProcessedSet(), control.Commands(), a.Metrics, cfg)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
