package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrTemporary    = errors.New("temporary failure")
	ErrApplication  = errors.New("application error")
	ErrConflict     = errors.New("conflict")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName returns a short label for the first matching error kind.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrUnauthorized):
		return "unauthorized"
	case IsKind(err, ErrNotFound):
		return "not_found"
	case IsKind(err, ErrRateLimited):
		return "rate_limited"
	case IsKind(err, ErrTemporary):
		return "temporary"
	case IsKind(err, ErrInvalidInput):
		return "validation"
	case IsKind(err, ErrConflict):
		return "conflict"
	default:
		return "application"
	}
}
