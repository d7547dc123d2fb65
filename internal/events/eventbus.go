package events

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/train-spotter/internal/logger"
)

// DefaultCapacity is the per-subscription queue size used when a caller
// does not request one.
const DefaultCapacity = 1024

// Bus fans published events out to independent bounded subscriptions.
// Publish never blocks: a full subscription drops its oldest queued event.
type Bus struct {
	mu          sync.Mutex
	subscribers []*Subscription
	stopped     atomic.Bool

	defaultCapacity int

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64

	logger  logger.Logger
	metrics Metrics
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithDefaultCapacity sets the queue size for subscriptions created with capacity <= 0.
func WithDefaultCapacity(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.defaultCapacity = n
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(l logger.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics attaches instrumentation.
func WithMetrics(m Metrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// NewBus creates a running bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{defaultCapacity: DefaultCapacity}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Global().Module("eventbus")
	}
	return b
}

// Publish delivers ev to every current subscription. It is a no-op once
// the bus is stopped.
func (b *Bus) Publish(ev Event) {
	if b == nil || b.stopped.Load() {
		return
	}

	b.mu.Lock()
	subs := slices.Clone(b.subscribers)
	b.mu.Unlock()

	b.published.Add(1)
	if b.metrics != nil {
		b.metrics.RecordPublished(string(ev.Type))
	}

	for _, s := range subs {
		delivered, evicted := s.push(ev)
		if delivered {
			b.delivered.Add(1)
		}
		if evicted {
			b.dropped.Add(1)
			if b.metrics != nil {
				b.metrics.RecordDropped(s.name)
			}
			b.logger.Debug("subscription full, dropped oldest event",
				logger.String("subscriber", s.name),
				logger.String("event_type", string(ev.Type)))
		}
	}
}

// Subscribe registers a new subscription with its own queue. A capacity of
// zero or less uses the bus default. Subscribing to a stopped bus returns
// an already closed subscription.
func (b *Bus) Subscribe(capacity int, opts ...SubscribeOption) *Subscription {
	if capacity <= 0 {
		capacity = b.defaultCapacity
	}

	s := &Subscription{
		id:   uuid.NewString(),
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
		bus:  b,
	}
	s.name = s.id[:8]
	for _, opt := range opts {
		opt(s)
	}

	b.mu.Lock()
	if b.stopped.Load() {
		b.mu.Unlock()
		s.closeOnce.Do(func() { close(s.done) })
		return s
	}
	b.subscribers = append(b.subscribers, s)
	n := len(b.subscribers)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SetSubscribers(n)
	}
	b.logger.Debug("subscription added",
		logger.String("subscriber", s.name),
		logger.Int("capacity", capacity))

	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	b.subscribers = slices.DeleteFunc(b.subscribers, func(x *Subscription) bool { return x == s })
	n := len(b.subscribers)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SetSubscribers(n)
	}
}

// Stop marks the bus stopped and closes every subscription. Safe to call
// more than once.
func (b *Bus) Stop() {
	if b == nil || !b.stopped.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.closeOnce.Do(func() { close(s.done) })
	}

	if b.metrics != nil {
		b.metrics.SetSubscribers(0)
	}

	stats := b.Stats()
	b.logger.Info("event bus stopped",
		logger.Uint64("published", stats.Published),
		logger.Uint64("delivered", stats.Delivered),
		logger.Uint64("dropped", stats.Dropped))
}

// Stopped reports whether Stop has been called.
func (b *Bus) Stopped() bool {
	return b.stopped.Load()
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.Lock()
	n := len(b.subscribers)
	b.mu.Unlock()

	return BusStats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
		Stopped:     b.Stopped(),
	}
}

// SubscribeOption configures a Subscription.
type SubscribeOption func(*Subscription)

// WithName labels the subscription in logs and metrics.
func WithName(name string) SubscribeOption {
	return func(s *Subscription) {
		if name != "" {
			s.name = name
		}
	}
}

// Subscription is one consumer's bounded queue on a Bus.
type Subscription struct {
	id   string
	name string
	ch   chan Event
	done chan struct{}
	bus  *Bus

	pushMu    sync.Mutex
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// push enqueues ev, evicting the oldest queued event when full.
func (s *Subscription) push(ev Event) (delivered, evicted bool) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	for {
		select {
		case <-s.done:
			return false, evicted
		default:
		}

		select {
		case s.ch <- ev:
			return true, evicted
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
			evicted = true
		default:
		}
	}
}

// Receive waits up to timeout for the next event. It returns false on
// timeout or once the subscription is closed or the bus stopped.
func (s *Subscription) Receive(timeout time.Duration) (Event, bool) {
	select {
	case <-s.done:
		return Event{}, false
	default:
	}

	if timeout <= 0 {
		select {
		case ev := <-s.ch:
			return ev, true
		default:
			return Event{}, false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-s.ch:
		return ev, true
	case <-s.done:
		return Event{}, false
	case <-timer.C:
		return Event{}, false
	}
}

// ReceiveContext waits for the next event until ctx is done or the
// subscription closes.
func (s *Subscription) ReceiveContext(ctx context.Context) (Event, bool) {
	select {
	case <-s.done:
		return Event{}, false
	default:
	}

	select {
	case ev := <-s.ch:
		return ev, true
	case <-s.done:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

// Drain returns every event still queued without blocking. It works after
// Close so consumers can flush on shutdown.
func (s *Subscription) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-s.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Close removes the subscription from the bus and unblocks receivers.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.bus.remove(s)
	})
}

// Done is closed when the subscription is closed or the bus stops.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// ID returns the unique subscription id.
func (s *Subscription) ID() string { return s.id }

// Name returns the subscription label.
func (s *Subscription) Name() string { return s.name }

// Len returns the number of queued events.
func (s *Subscription) Len() int { return len(s.ch) }

// Cap returns the queue capacity.
func (s *Subscription) Cap() int { return cap(s.ch) }

// Dropped returns how many events this subscription lost to drop-oldest.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }
