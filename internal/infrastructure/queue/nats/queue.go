package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

const eventDocumentProcessed = "document.processed"

// Bus publishes processing results and receives remote sync requests.
type Bus struct {
	conn          *nats.Conn
	resultSubject string
	syncSubject   string
	executor      *resilience.Executor
}

type Options struct {
	ResultSubject        string
	SyncSubject          string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

// ResultEvent is the JSON body published for every finished document.
type ResultEvent struct {
	Event       string                  `json:"event"`
	PublishedAt time.Time               `json:"published_at"`
	Result      domain.ProcessingResult `json:"result"`
}

// SyncRequest is the optional JSON body of a sync message. An empty body
// requests a plain sync.
type SyncRequest struct {
	Reason string `json:"reason,omitempty"`
}

func New(url string, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	if options.ResultSubject == "" {
		options.ResultSubject = "paperless.documents.processed"
	}
	if options.SyncSubject == "" {
		options.SyncSubject = "paperless.listener.sync"
	}

	conn, err := nats.Connect(
		url,
		nats.Name("better-paperless"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:          conn,
		resultSubject: options.ResultSubject,
		syncSubject:   options.SyncSubject,
		executor:      options.ResilienceExecutor,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishResult(ctx context.Context, result domain.ProcessingResult) error {
	payload, err := encodeResult(result, time.Now())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.resultSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapBusError("publish_result", err)
	}
	return nil
}

// RequestSync asks running listeners to sync now.
func (b *Bus) RequestSync(ctx context.Context, reason string) error {
	payload, err := json.Marshal(SyncRequest{Reason: reason})
	if err != nil {
		return fmt.Errorf("encode sync request: %w", err)
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.syncSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return b.conn.Flush()
	}
	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.request_sync", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapBusError("request_sync", err)
}

// SubscribeSync calls handler for every sync request until ctx is done.
func (b *Bus) SubscribeSync(ctx context.Context, handler func(context.Context, SyncRequest)) error {
	sub, err := b.conn.Subscribe(b.syncSubject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		handler(ctx, decodeSyncRequest(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeResult(result domain.ProcessingResult, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(ResultEvent{
		Event:       eventDocumentProcessed,
		PublishedAt: now.UTC(),
		Result:      result,
	})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return payload, nil
}

func decodeSyncRequest(data []byte) SyncRequest {
	var req SyncRequest
	if len(data) == 0 {
		return req
	}
	if err := json.Unmarshal(data, &req); err != nil {
		req.Reason = string(data)
	}
	return req
}
