package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/messaging"
)

var ErrClosed = errors.New("tracker is closed")

// Option adjusts the TrackerConfig used by Track.
type Option func(*config.TrackerConfig)

func WithConfig(cfg config.TrackerConfig) Option {
	return func(c *config.TrackerConfig) {
		c.Merge(&cfg)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config.TrackerConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// Tracker maintains a live SystemState from the messages on a bus.
type Tracker struct {
	name   string
	logger *slog.Logger
	sub    *bus.Subscription

	mu      sync.Mutex
	state   SystemState
	updates chan struct{}
	closed  bool
}

// Track subscribes to b and asks every unit to report its state and
// dependencies, so the snapshot converges regardless of when the tracker
// attaches.
func Track(b *bus.Bus, opts ...Option) (*Tracker, error) {
	cfg := config.DefaultTrackerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Tracker{
		name:    cfg.Name,
		logger:  cfg.Logger,
		updates: make(chan struct{}),
	}

	sub, err := b.Subscribe(
		bus.OfKind(
			messaging.KindNewUnit,
			messaging.KindTransition,
			messaging.KindDependencies,
			messaging.KindDesiredState,
		),
		t.observe,
	)
	if err != nil {
		return nil, fmt.Errorf("tracker %s: %w", cfg.Name, err)
	}
	t.sub = sub

	for _, msg := range []*messaging.Message{
		messaging.NewReportStateRequest("").Build(),
		messaging.NewReportDependenciesRequest("").Build(),
	} {
		if err := b.Publish(msg); err != nil {
			sub.Unsubscribe()
			return nil, fmt.Errorf("tracker %s: %w", cfg.Name, err)
		}
	}

	t.logger.Debug("tracker attached", slog.String("tracker_name", t.name))
	return t, nil
}

func (t *Tracker) observe(msg *messaging.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	next := Fold(t.state, msg)
	if next.Equal(t.state) {
		return
	}
	t.state = next

	close(t.updates)
	t.updates = make(chan struct{})
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() SystemState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Updates returns a channel that is closed at the next change of the
// snapshot. Call it again after each change for the following one.
func (t *Tracker) Updates() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updates
}

// Wait blocks until pred holds for the snapshot and returns that snapshot.
func (t *Tracker) Wait(ctx context.Context, pred func(SystemState) bool) (SystemState, error) {
	for {
		t.mu.Lock()
		state, updates, closed := t.state, t.updates, t.closed
		t.mu.Unlock()

		if pred(state) {
			return state, nil
		}
		if closed {
			return state, ErrClosed
		}

		select {
		case <-updates:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close detaches the tracker from the bus. Pending Wait calls return
// ErrClosed unless their predicate already holds.
func (t *Tracker) Close() {
	t.sub.Unsubscribe()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	close(t.updates)

	t.logger.Debug("tracker closed", slog.String("tracker_name", t.name))
}

// AllIn returns a predicate that holds when every unit in the snapshot,
// and at least one, is in one of states.
func AllIn(states ...messaging.ActualState) func(SystemState) bool {
	return func(s SystemState) bool {
		if s.Len() == 0 {
			return false
		}
		for _, v := range s.units {
			if !inStates(v.ActualState(), states) {
				return false
			}
		}
		return true
	}
}

// UnitIn returns a predicate that holds when unit id is in one of states.
func UnitIn(id string, states ...messaging.ActualState) func(SystemState) bool {
	return func(s SystemState) bool {
		v, ok := s.Unit(id)
		return ok && inStates(v.ActualState(), states)
	}
}

// NoneIn returns a predicate that holds when no unit is in any of states.
func NoneIn(states ...messaging.ActualState) func(SystemState) bool {
	return func(s SystemState) bool {
		for _, v := range s.units {
			if inStates(v.ActualState(), states) {
				return false
			}
		}
		return true
	}
}

func inStates(state messaging.ActualState, states []messaging.ActualState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}
