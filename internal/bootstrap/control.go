package bootstrap

import (
	"context"
	"errors"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/core/usecase"
)

const commandBuffer = 4

// ListenerControl fans signals, stdin keys, NATS messages and HTTP requests
// into one listener command channel.
type ListenerControl struct {
	commands chan usecase.ListenerCommand
}

func NewListenerControl() *ListenerControl {
	return &ListenerControl{commands: make(chan usecase.ListenerCommand, commandBuffer)}
}

func (c *ListenerControl) Commands() <-chan usecase.ListenerCommand {
	return c.commands
}

// TriggerSync queues a manual sync without blocking.
func (c *ListenerControl) TriggerSync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case c.commands <- usecase.CommandSync:
		return nil
	default:
		return domain.WrapError(domain.ErrRateLimited, "trigger sync", errors.New("listener command queue is full"))
	}
}

// Stop asks the listener to exit after the in-flight batch. It blocks until
// the command is queued or ctx ends.
func (c *ListenerControl) Stop(ctx context.Context) {
	select {
	case c.commands <- usecase.CommandStop:
	case <-ctx.Done():
	}
}
