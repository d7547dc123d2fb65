// Package processor consumes analytics events from the bus and runs the
// configured actions for each one.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/events"
	"github.com/tphakala/train-spotter/internal/logger"
	"github.com/tphakala/train-spotter/internal/mqtt"
	"github.com/tphakala/train-spotter/internal/observability/metrics"
)

// Processor runs every action for each event received on its subscription.
// Actions run sequentially in subscription order.
type Processor struct {
	sub     *events.Subscription
	actions []Action
	metrics metrics.Recorder
	log     logger.Logger
	timeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	mu        sync.Mutex
	processed uint64
	failed    uint64
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics records action outcomes.
func WithMetrics(m metrics.Recorder) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithActionTimeout overrides ActionTimeout.
func WithActionTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New subscribes to bus. A non-positive capacity uses the bus default.
func New(bus *events.Bus, capacity int, actions []Action, opts ...Option) *Processor {
	p := &Processor{
		actions: actions,
		metrics: metrics.NoOpRecorder{},
		log:     GetLogger(),
		timeout: ActionTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sub = bus.Subscribe(capacity, events.WithName("processor"))
	return p
}

// ActionsFromSettings builds the database and MQTT actions enabled in
// settings. Either dependency may be nil.
func ActionsFromSettings(settings *conf.Settings, store datastore.Interface, client mqtt.Client) []Action {
	var actions []Action
	if store != nil {
		actions = append(actions, &DatabaseAction{Store: store})
	}
	if client != nil && settings.MQTT.Enabled {
		actions = append(actions, &MqttAction{Client: client, Topic: settings.MQTT.Topic})
	}
	return actions
}

// Start launches the consumer goroutine. It stops when ctx is cancelled,
// Stop is called or the bus stops; queued events are still processed.
func (p *Processor) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		go p.run(ctx)
	})
}

func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	p.log.Info("event processor started", logger.Int("actions", len(p.actions)))
	for {
		ev, ok := p.sub.ReceiveContext(ctx)
		if !ok {
			break
		}
		p.handle(ev)
	}

	p.sub.Close()
	pending := p.sub.Drain()
	for i := range pending {
		p.handle(pending[i])
	}
	p.log.Info("event processor stopped",
		logger.Int("drained", len(pending)),
		logger.Uint64("processed", p.Processed()))
}

// Stop closes the subscription, waits for queued events to be handled and
// returns. Safe to call more than once; a never-started processor just
// unsubscribes.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		p.sub.Close()
		// blocks a later Start and waits for a concurrent one
		p.startOnce.Do(func() {})
		if p.cancel == nil {
			return
		}
		<-p.done
		p.cancel()
	})
}

func (p *Processor) handle(ev events.Event) {
	for _, a := range p.actions {
		name := a.GetDescription()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		start := time.Now()
		err := a.Execute(ctx, ev)
		cancel()

		p.metrics.RecordDuration(name, time.Since(start).Seconds())
		if err != nil {
			p.mu.Lock()
			p.failed++
			p.mu.Unlock()
			p.metrics.RecordOperation(name, metrics.StatusError)
			p.metrics.RecordError(name, errorCategory(err))
			p.log.Error("action failed",
				logger.String("action", name),
				logger.String("event_type", string(ev.Type)),
				logger.Error(err))
			continue
		}
		p.metrics.RecordOperation(name, metrics.StatusSuccess)
	}

	p.mu.Lock()
	p.processed++
	p.mu.Unlock()
}

func errorCategory(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return string(ee.Category)
	}
	return string(errors.CategoryGeneric)
}

// Processed returns the number of events handled.
func (p *Processor) Processed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed
}

// Failed returns the number of failed action executions.
func (p *Processor) Failed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
