// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

// DefaultDeliveryTimeout bounds a single delivery to the sink.
const DefaultDeliveryTimeout = 30 * time.Second

// Dispatcher queues events and delivers them to a sink on a background
// worker, so that request handlers never wait on SMTP or Redis.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a worker delivering to sink. size is the queue capacity.
func NewDispatcher(sink Sink, size int, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = 128
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, size),
		timeout: DefaultDeliveryTimeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues ev. It never blocks; when the queue is full or the
// dispatcher is closed the event is dropped and logged.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, ev, ErrClosed)
		return ErrClosed
	}

	select {
	case d.queue <- ev:
		return nil
	default:
		d.drop(ctx, ev, ErrQueueFull)
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queue is drained or
// ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Publish(ctx, ev); err != nil {
		d.logger.Error("notification_failed",
			"event_id", ev.ID.String(),
			"kind", string(ev.Kind),
			"user_id", ev.UserID,
			"error", err,
		)
	}
}

func (d *Dispatcher) drop(ctx context.Context, ev Event, reason error) {
	d.logger.WarnContext(ctx, "notification_dropped",
		"event_id", ev.ID.String(),
		"kind", string(ev.Kind),
		"user_id", ev.UserID,
		"reason", reason.Error(),
	)
}
