// Package eventbus delivers side-channel events to handlers on background workers.
// Publish never blocks: a full queue drops the event with a warning.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"fieldops/internal/domain/events"
	"fieldops/pkg/logger"
)

// Config holds bus sizing.
type Config struct {
	BufferSize int
	Workers    int
}

type envelope struct {
	ctx   context.Context
	event events.Event
}

// Bus is an in-process asynchronous publisher.
type Bus struct {
	queue    chan envelope
	handlers []events.Handler
	log      *logger.Logger
	wg       sync.WaitGroup
	closed   atomic.Bool
	mu       sync.RWMutex
	dropped  atomic.Int64
}

// New starts the workers. Handlers are called in registration order per event.
func New(cfg Config, log *logger.Logger, handlers ...events.Handler) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	b := &Bus{
		queue:    make(chan envelope, cfg.BufferSize),
		handlers: handlers,
		log:      log.WithComponent("eventbus"),
	}
	for i := 0; i < cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

// Publish enqueues the event. The request context is detached from cancellation so
// events outlive the HTTP response while keeping trace and actor values.
func (b *Bus) Publish(ctx context.Context, event events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed.Load() {
		b.dropped.Add(1)
		b.log.Warnw("event dropped: bus closed", "event", event.EventName())
		return
	}

	select {
	case b.queue <- envelope{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		b.dropped.Add(1)
		b.log.Warnw("event dropped: queue full", "event", event.EventName(), "capacity", cap(b.queue))
	}
}

// Dropped returns the number of events discarded so far.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting events and waits until queued events are handled
// or ctx expires.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed.Swap(true) {
		close(b.queue)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for env := range b.queue {
		b.dispatch(env)
	}
}

func (b *Bus) dispatch(env envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("event handler panicked", "event", env.event.EventName(), "panic", r)
		}
	}()

	for _, h := range b.handlers {
		if err := h.Handle(env.ctx, env.event); err != nil {
			logger.Warn(env.ctx, "event handler failed",
				"event", env.event.EventName(),
				"error", err)
		}
	}
}
