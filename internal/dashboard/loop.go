package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStopped is returned when work is submitted to a loop that has exited.
var ErrStopped = errors.New("dashboard loop stopped")

const defaultQueueSize = 64

// Loop runs submitted closures one at a time on a single goroutine.
// Everything that reads or writes dashboard state goes through it, so no
// two state transitions ever interleave.
type Loop struct {
	queue    chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewLoop creates a loop with a queue of the given size.
func NewLoop(size int, logger zerolog.Logger) *Loop {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Loop{
		queue:   make(chan func(), size),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run drains the queue until ctx is done. It must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.stopped) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}

	select {
	case l.queue <- fn:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error().
				Interface("panic", rec).
				Msg("panic in dashboard loop")
		}
	}()
	fn()
}
