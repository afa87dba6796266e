package email

import (
	"context"
	"fmt"
)

// dispatchMode is either synchronous or asynchronous, fixed when the Config
// is built.
type dispatchMode interface {
	dispatch(ctx context.Context, c *Config, m *Message) error
	String() string
}

// synchronous delivers on the caller's goroutine.
type synchronous struct{}

func (synchronous) String() string { return "sync" }

func (s synchronous) dispatch(ctx context.Context, c *Config, m *Message) error {
	err := c.transport.SendMessage(ctx, m)
	c.record(m, s, err)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("to", m.To).
			Str("messageId", m.ID).
			Str("mode", s.String()).
			Msg("could not send the message")
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	c.logger.Debug().
		Str("to", m.To).
		Str("messageId", m.ID).
		Msg("sent the message")
	return nil
}

// asynchronous hands delivery to a pool. The caller never sees transport
// errors: they are logged and journaled, nothing more.
type asynchronous struct {
	pool Pool
}

func (asynchronous) String() string { return "async" }

func (a asynchronous) dispatch(ctx context.Context, c *Config, m *Message) error {
	// Once submitted, a send can't be called off.
	ctx = context.WithoutCancel(ctx)
	c.record(m, a, nil)

	a.pool.Submit(func() {
		if err := c.transport.SendMessage(ctx, m); err != nil {
			c.record(m, a, err)
			c.logger.Warn().
				Err(err).
				Str("to", m.To).
				Str("messageId", m.ID).
				Str("mode", a.String()).
				Msg("could not send the message")
			return
		}
		c.logger.Debug().
			Str("to", m.To).
			Str("messageId", m.ID).
			Msg("sent the message")
	})
	return nil
}
