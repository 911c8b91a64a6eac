package paperless

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

// APIError carries the raw backend response of a failed call.
type APIError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e == nil {
		return "paperless status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("paperless %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("paperless %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func wrapStatusKind(err *APIError) error {
	var kind error
	switch err.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ErrUnauthorized
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusTooManyRequests:
		kind = domain.ErrRateLimited
	case http.StatusConflict:
		kind = domain.ErrConflict
	default:
		kind = domain.ErrApplication
	}
	return domain.WrapError(kind, "paperless "+err.Operation, err)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// classifyPaperlessError retries only connection and timeout failures.
// Application responses are returned to the caller as is.
func classifyPaperlessError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	var transportErr *transportError
	if errors.As(err, &transportErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: apiErr.StatusCode >= 500,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	class := classifyPaperlessError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "paperless "+operation, err)
	}
	return err
}

func isCreateConflict(err error) bool {
	code := StatusCode(err)
	return code == http.StatusBadRequest || code == http.StatusConflict
}
