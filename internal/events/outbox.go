package events

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/metrics"
)

const (
	// DefaultBuffer is the outbox capacity used when none is given.
	DefaultBuffer = 1024
	// DefaultDeliveryTimeout bounds one HandleEvent call.
	DefaultDeliveryTimeout = 5 * time.Second
	// DefaultDrainTimeout bounds the flush after Run is cancelled.
	DefaultDrainTimeout = 10 * time.Second
)

// Subscriber consumes committed ledger events. Errors are logged and counted
// but never reach the registry.
type Subscriber interface {
	Name() string
	HandleEvent(ctx context.Context, ev ledger.Event) error
}

// Outbox is a bounded, non-blocking ledger.EventSink. Run fans buffered
// events out to subscribers in publish order.
type Outbox struct {
	ch      chan ledger.Event
	subs    []Subscriber
	metrics *metrics.Metrics
	logger  *slog.Logger
	dropped atomic.Uint64

	deliveryTimeout time.Duration
	drainTimeout    time.Duration
}

// Option configures an Outbox.
type Option func(*Outbox)

// WithDeliveryTimeout caps how long a single subscriber may hold one event.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(o *Outbox) {
		if d > 0 {
			o.deliveryTimeout = d
		}
	}
}

// WithDrainTimeout caps the shutdown flush. Events still queued when it
// expires are counted as dropped.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *Outbox) {
		if d > 0 {
			o.drainTimeout = d
		}
	}
}

var _ ledger.EventSink = (*Outbox)(nil)

// New creates an outbox holding up to buffer pending events.
func New(buffer int, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Outbox {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := &Outbox{
		ch:              make(chan ledger.Event, buffer),
		metrics:         m,
		logger:          logger,
		deliveryTimeout: DefaultDeliveryTimeout,
		drainTimeout:    DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Subscribe adds a subscriber. It must be called before Run.
func (o *Outbox) Subscribe(s Subscriber) {
	o.subs = append(o.subs, s)
}

// Publish enqueues ev, dropping it when the buffer is full.
func (o *Outbox) Publish(ev ledger.Event) {
	select {
	case o.ch <- ev:
	default:
		o.dropped.Add(1)
		o.metrics.IncEventsDropped()
		o.logger.Warn("event outbox full, dropping event", "event_id", ev.ID, "type", ev.Type, "record_id", ev.RecordID)
	}
}

// Dropped returns how many events were discarded.
func (o *Outbox) Dropped() uint64 {
	return o.dropped.Load()
}

// Pending returns how many events wait for delivery.
func (o *Outbox) Pending() int {
	return len(o.ch)
}

// Run delivers events until ctx is done, then flushes what is already queued
// within the drain timeout.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.drainTimeout)
			o.drain(drainCtx)
			cancel()
			return nil
		case ev := <-o.ch:
			o.deliver(ctx, ev)
		}
	}
}

func (o *Outbox) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			if n := len(o.ch); n > 0 {
				o.discard()
				o.logger.Warn("event drain timed out", "dropped", n)
			}
			return
		}
		select {
		case ev := <-o.ch:
			o.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (o *Outbox) discard() {
	for {
		select {
		case <-o.ch:
			o.dropped.Add(1)
			o.metrics.IncEventsDropped()
		default:
			return
		}
	}
}

func (o *Outbox) deliver(ctx context.Context, ev ledger.Event) {
	for _, s := range o.subs {
		subCtx, cancel := context.WithTimeout(ctx, o.deliveryTimeout)
		err := s.HandleEvent(subCtx, ev)
		cancel()
		o.metrics.ObserveDelivery(s.Name(), err)
		if err != nil {
			o.logger.Warn("event delivery failed",
				"subscriber", s.Name(),
				"event_id", ev.ID,
				"type", ev.Type,
				"error", err,
			)
		}
	}
}
