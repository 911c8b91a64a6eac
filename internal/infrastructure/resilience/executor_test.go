package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func newRecordingExecutor(cfg Config) (*Executor, *[]time.Duration) {
	exec := NewExecutor(cfg)
	waits := []time.Duration{}
	exec.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return exec, &waits
}

func TestExecuteRetriesTemporaryFailureWithCappedBackoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 4
	cfg.BreakerEnabled = false
	exec, waits := newRecordingExecutor(cfg)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "paperless.get_document", func(context.Context) error {
		attempts++
		if attempts < 4 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), *waits)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Fatalf("wait %d: expected %s, got %s", i, want[i], (*waits)[i])
		}
	}
}

func TestExecuteBackoffNeverExceedsCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 6
	cfg.BreakerEnabled = false
	exec, waits := newRecordingExecutor(cfg)

	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last error, got %v", err)
	}
	for _, w := range *waits {
		if w > 10*time.Second {
			t.Fatalf("backoff %s exceeds ceiling", w)
		}
	}
	if len(*waits) != 5 {
		t.Fatalf("expected 5 waits, got %d", len(*waits))
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerEnabled = false
	exec, waits := newRecordingExecutor(cfg)

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if len(*waits) != 0 {
		t.Fatalf("expected no waits, got %v", *waits)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("expected IsCircuitOpen to report open breaker")
	}
}

func TestDoReturnsValueAndNilExecutorRunsOnce(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), nil, "op", func(context.Context) (int, error) {
		calls++
		return 42, nil
	}, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if v != 42 || calls != 1 {
		t.Fatalf("expected 42 after one call, got %d after %d", v, calls)
	}
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerEnabled = false
	exec := NewExecutor(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errTemp := errors.New("temporary")
	attempts := 0
	err := exec.Execute(ctx, "op", func(context.Context) error {
		attempts++
		cancel()
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last error after cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}
