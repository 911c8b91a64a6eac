package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/ports"
)

type ListenerCommand int

const (
	CommandSync ListenerCommand = iota + 1
	CommandStop
)

func (c ListenerCommand) String() string {
	switch c {
	case CommandSync:
		return "sync"
	case CommandStop:
		return "stop"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// ProcessedSet remembers document ids handled during this process lifetime.
type ProcessedSet struct {
	mu  sync.Mutex
	ids map[int]struct{}
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{ids: make(map[int]struct{})}
}

func (s *ProcessedSet) Add(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *ProcessedSet) Contains(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Missing returns the ids not in the set, keeping their order.
func (s *ProcessedSet) Missing(ids []int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.ids[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

type ListenerConfig struct {
	Interval time.Duration
	// Schedule overrides Interval with a cron expression when set.
	Schedule     string
	PollInterval time.Duration
	ListLimit    int
	Concurrency  int
}

// Listener periodically lists documents and processes the ones it has not
// seen yet. Commands are read between batches; a running batch always
// completes before a stop takes effect.
type Listener struct {
	backend   ports.DocumentBackend
	processor ports.DocumentProcessor
	processed *ProcessedSet
	commands  <-chan ListenerCommand
	metrics   ports.ProcessingMetrics
	cfg       ListenerConfig
}

func NewListener(
	backend ports.DocumentBackend,
	processor ports.DocumentProcessor,
	processed *ProcessedSet,
	commands <-chan ListenerCommand,
	metrics ports.ProcessingMetrics,
	cfg ListenerConfig,
) *Listener {
	if cfg.Interval <= 0 {
		cfg.Interval = 12 * time.Hour
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 1000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if processed == nil {
		processed = NewProcessedSet()
	}
	return &Listener{
		backend:   backend,
		processor: processor,
		processed: processed,
		commands:  commands,
		metrics:   metrics,
		cfg:       cfg,
	}
}

func (l *Listener) schedule() string {
	if l.cfg.Schedule != "" {
		return l.cfg.Schedule
	}
	return "@every " + l.cfg.Interval.String()
}

// Run blocks until ctx is done or a CommandStop arrives. It syncs once at
// start, then on every schedule tick and every CommandSync.
func (l *Listener) Run(ctx context.Context) error {
	due := make(chan struct{}, 1)
	scheduler := cron.New()
	entryID, err := scheduler.AddFunc(l.schedule(), func() {
		select {
		case due <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "listener schedule", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	slog.Info("listener_started", "schedule", l.schedule(), "poll_interval", l.cfg.PollInterval)
	l.sync(ctx, "startup")

	poll := time.NewTicker(l.cfg.PollInterval)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("listener_stopped", "reason", "context_done", "processed", l.processed.Len())
			return nil
		case <-due:
			l.sync(ctx, "schedule")
		case cmd, ok := <-l.commands:
			if !ok {
				l.commands = nil
				continue
			}
			switch cmd {
			case CommandSync:
				slog.Info("manual_sync_requested")
				l.sync(ctx, "manual")
			case CommandStop:
				slog.Info("listener_stopped", "reason", "stop_command", "processed", l.processed.Len())
				return nil
			}
		case <-poll.C:
			slog.Debug("listener_waiting", "next_sync", scheduler.Entry(entryID).Next, "processed", l.processed.Len())
		}
	}
}

// sync processes every listed document that is not in the processed set.
// Only successful results are remembered, so failures are retried next run.
func (l *Listener) sync(ctx context.Context, trigger string) {
	ids, err := CollectDocumentIDs(ctx, l.backend, domain.DocumentFilter{Ordering: "-created"}, l.cfg.ListLimit)
	if err != nil {
		slog.Error("listener_sync_failed", "trigger", trigger, "error", err)
		return
	}
	pending := l.processed.Missing(ids)
	if l.metrics != nil {
		l.metrics.RecordSync(trigger, len(pending))
	}
	if len(pending) == 0 {
		slog.Info("listener_no_new_documents", "trigger", trigger, "listed", len(ids))
		return
	}

	slog.Info("listener_new_documents", "trigger", trigger, "count", len(pending))
	results := l.processor.ProcessBatch(ctx, pending, l.cfg.Concurrency)
	summary := Summarize(results)
	for _, r := range results {
		if r.Success {
			l.processed.Add(r.DocumentID)
		}
	}
	slog.Info("listener_sync_complete",
		"trigger", trigger,
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"cost", summary.TotalCost,
	)
}
