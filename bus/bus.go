package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/messaging"
)

// Handler consumes messages for a subscription. Handlers of one
// subscription run sequentially on that subscription's worker.
type Handler func(msg *messaging.Message)

// Subscription is a registration on the bus with its own mailbox and
// worker goroutine.
type Subscription struct {
	id      uint64
	bus     *Bus
	filter  Filter
	handler Handler
	mailbox *Mailbox[*messaging.Message]
	once    sync.Once
	done    chan struct{}
}

// Unsubscribe removes the subscription from the bus and stops its worker.
// Messages still queued are discarded. Only the first call has any effect.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s)
		s.mailbox.Close()
	})
}

// Done is closed once the subscription's worker has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Pending reports how many messages wait in the subscription's mailbox.
func (s *Subscription) Pending() int {
	return s.mailbox.Len()
}

func (s *Subscription) run() {
	defer close(s.done)

	for {
		msg, err := s.mailbox.Receive(context.Background())
		if err != nil {
			return
		}
		s.bus.dispatch(s, msg)
	}
}

// Bus is an in-process publish/subscribe channel. Publish appends the
// message to the mailbox of every matching subscription under a single
// lock, so all subscribers observe messages in publish order.
type Bus struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	subs    []*Subscription
	nextID  uint64
	closed  bool
	metrics metrics
}

func New(busConfig config.BusConfig) *Bus {
	cfg := config.DefaultBusConfig()
	cfg.Merge(&busConfig)

	return &Bus{
		name:    cfg.Name,
		logger:  cfg.Logger,
		metrics: newMetrics(),
	}
}

func (b *Bus) Name() string {
	return b.name
}

// Publish hands msg to every subscription active at this moment whose
// filter accepts it. Subscribers that join later never see it.
func (b *Bus) Publish(msg *messaging.Message) error {
	if msg == nil {
		return ErrNilMessage
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("%w: cannot publish %s", ErrClosed, msg.Kind)
	}

	delivered := 0
	for _, sub := range b.subs {
		if !sub.filter(msg) {
			continue
		}
		if sub.mailbox.Send(msg) {
			delivered++
		}
	}

	b.metrics.recordPublish(msg.Kind, delivered)

	return nil
}

// Subscribe registers handler for every future message accepted by
// filter. A nil filter accepts everything.
func (b *Bus) Subscribe(filter Filter, handler Handler) (*Subscription, error) {
	if filter == nil {
		filter = MatchAll
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}

	b.nextID++
	sub := &Subscription{
		id:      b.nextID,
		bus:     b,
		filter:  filter,
		handler: handler,
		mailbox: NewMailbox[*messaging.Message](),
		done:    make(chan struct{}),
	}
	b.subs = append(b.subs, sub)
	b.metrics.subscribers++
	b.mu.Unlock()

	go sub.run()

	b.logger.Debug(
		"subscription added",
		slog.String("bus_name", b.name),
		slog.Uint64("subscription_id", sub.id),
	)

	return sub, nil
}

// Metrics returns the bus counters together with the number of messages
// still queued across all subscriptions.
func (b *Bus) Metrics() MetricsSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.metrics.snapshot()
	for _, sub := range b.subs {
		snap.Pending += int64(sub.Pending())
	}
	return snap
}

// Close unsubscribes every subscription. Later calls to Publish and
// Subscribe fail with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	b.logger.Debug(
		"bus closed",
		slog.String("bus_name", b.name),
		slog.Int("subscriptions", len(subs)),
	)
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	removed := false
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			b.metrics.subscribers--
			removed = true
			break
		}
	}
	b.mu.Unlock()

	if removed {
		b.logger.Debug(
			"subscription removed",
			slog.String("bus_name", b.name),
			slog.Uint64("subscription_id", sub.id),
		)
	}
}

func (b *Bus) dispatch(sub *Subscription, msg *messaging.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(
				"message handler panicked",
				slog.String("bus_name", b.name),
				slog.Uint64("subscription_id", sub.id),
				slog.String("kind", string(msg.Kind)),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if sub.handler != nil {
		sub.handler(msg)
	}
}
