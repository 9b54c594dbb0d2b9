package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/ports"
	"github.com/mikey-austin/zonectl/pkg/hass"
)

// Interaction is the user event that triggered a command.
type Interaction interface {
	StopPropagation()
}

// Commander hands planned service calls to a Dispatcher.
type Commander struct {
	Dispatcher ports.Dispatcher
	// Async dispatches each call in its own goroutine and logs failures
	// instead of returning them.
	Async   bool
	Timeout time.Duration
	Log     *zap.Logger
}

// Send dispatches calls in order. In async mode it returns immediately.
func (c Commander) Send(ctx context.Context, ev Interaction, calls []hass.ServiceCall) error {
	if ev != nil {
		ev.StopPropagation()
	}
	if len(calls) == 0 {
		return nil
	}
	if c.Dispatcher == nil {
		return errors.New("no dispatcher")
	}
	if c.Async {
		for _, call := range calls {
			go c.dispatchLogged(context.WithoutCancel(ctx), call)
		}
		return nil
	}

	var errs []error
	for _, call := range calls {
		if err := c.dispatch(ctx, call); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", call.Name(), call.EntityID(), err))
		}
	}
	return errors.Join(errs...)
}

func (c Commander) dispatch(ctx context.Context, call hass.ServiceCall) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return c.Dispatcher.CallService(ctx, call)
}

func (c Commander) dispatchLogged(ctx context.Context, call hass.ServiceCall) {
	if err := c.dispatch(ctx, call); err != nil {
		c.logger().Warn("service call failed",
			zap.String("service", call.Name()),
			zap.String("entity_id", call.EntityID()),
			zap.Error(err),
		)
		return
	}
	c.logger().Debug("service call sent",
		zap.String("service", call.Name()),
		zap.String("entity_id", call.EntityID()),
	)
}

func (c Commander) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
