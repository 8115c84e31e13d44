package resolver

import (
	"context"
	"log/slog"
	"time"
)

// BlockEvent describes one block invocation
type BlockEvent struct {
	Tag      string
	Position int
	Content  string
	Output   string
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware intercepts block invocations; it must call next exactly once
// to run the extension
type Middleware func(ctx context.Context, event *BlockEvent, next func() error) error

// chain runs exec through the registered middlewares
func (d *Dispatcher) chain(ctx context.Context, event *BlockEvent, exec func() error) error {
	event.Start = time.Now()
	if len(d.middlewares) == 0 {
		err := exec()
		event.End = time.Now()
		event.Duration = event.End.Sub(event.Start)
		event.Error = err
		return err
	}

	var next func() error
	index := 0

	next = func() error {
		if index >= len(d.middlewares) {
			// Last middleware, execute the actual block
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}

		mw := d.middlewares[index]
		index++
		return mw(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware logs every block invocation at debug level
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *BlockEvent, next func() error) error {
		err := next()
		logger.DebugContext(ctx, "block executed",
			"tag", event.Tag,
			"position", event.Position,
			"duration", event.Duration,
			"output_length", len(event.Output),
			"error", err,
		)
		return err
	}
}

// SlowBlockMiddleware warns about blocks that take longer than threshold
func SlowBlockMiddleware(logger *slog.Logger, threshold time.Duration) Middleware {
	return func(ctx context.Context, event *BlockEvent, next func() error) error {
		err := next()
		if event.Duration > threshold {
			logger.WarnContext(ctx, "slow block",
				"tag", event.Tag,
				"position", event.Position,
				"duration", event.Duration,
			)
		}
		return err
	}
}
