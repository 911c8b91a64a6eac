package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

// classifyNATSError retries only connection-level failures. A result or sync
// request that the server rejects (payload too large, bad subject, denied
// permissions) fails the same way on every attempt.
func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if busErrorKind(err) == domain.ErrTemporary {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	// Rejected payloads say nothing about broker health.
	if errors.Is(err, nats.ErrMaxPayload) || errors.Is(err, nats.ErrBadSubject) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// busErrorKind maps a NATS failure onto the domain error kinds, or nil when
// the error carries no known meaning.
func busErrorKind(err error) error {
	switch {
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrReconnectBufExceeded),
		errors.Is(err, nats.ErrSlowConsumer):
		return domain.ErrTemporary
	case errors.Is(err, nats.ErrAuthorization), errors.Is(err, nats.ErrAuthExpired):
		return domain.ErrUnauthorized
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return domain.ErrInvalidInput
	}
	return nil
}

// wrapBusError attaches a domain kind so callers such as the sync command
// can tell a missing broker from a misconfigured subject.
func wrapBusError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "nats "+operation, err)
	}
	if kind := busErrorKind(err); kind != nil {
		return domain.WrapError(kind, "nats "+operation, err)
	}
	return err
}
