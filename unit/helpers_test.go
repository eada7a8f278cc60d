package unit_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/unit"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	quiet   = 50 * time.Millisecond
)

var discard = slog.New(slog.DiscardHandler)

func newBus(t *testing.T) *bus.Bus {
	t.Helper()
	b := bus.New(config.BusConfig{Name: t.Name(), Logger: discard})
	t.Cleanup(b.Close)
	return b
}

func newUnit(t *testing.T, id string, b *bus.Bus, ops unit.Operations, opts ...unit.Option) *unit.Unit {
	t.Helper()
	opts = append([]unit.Option{unit.WithLogger(discard)}, opts...)
	u, err := unit.New(id, b, ops, opts...)
	require.NoError(t, err)
	return u
}

var instant = unit.Operations{Start: unit.Succeed, Stop: unit.Succeed}

func send(t *testing.T, b *bus.Bus, id string, cmd messaging.Command) {
	t.Helper()
	require.NoError(t, b.Publish(messaging.NewCommand(id, cmd).Build()))
}

// watcher records every Transition and DesiredStateChanged on a bus.
type watcher struct {
	mu          sync.Mutex
	transitions []messaging.Transition
	desired     []messaging.DesiredStateChanged
}

func watch(t *testing.T, b *bus.Bus) *watcher {
	t.Helper()
	w := &watcher{}
	sub, err := b.Subscribe(
		bus.OfKind(messaging.KindTransition, messaging.KindDesiredState),
		func(msg *messaging.Message) {
			w.mu.Lock()
			defer w.mu.Unlock()
			if tr, ok := msg.Transition(); ok {
				w.transitions = append(w.transitions, tr)
			}
			if d, ok := msg.DesiredStateChanged(); ok {
				w.desired = append(w.desired, d)
			}
		},
	)
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	return w
}

func (w *watcher) of(id string) []messaging.Transition {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []messaging.Transition
	for _, tr := range w.transitions {
		if tr.UnitID == id {
			out = append(out, tr)
		}
	}
	return out
}

func (w *watcher) all() []messaging.Transition {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]messaging.Transition(nil), w.transitions...)
}

func (w *watcher) desiredOf(id string) []messaging.DesiredStateChanged {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []messaging.DesiredStateChanged
	for _, d := range w.desired {
		if d.UnitID == id {
			out = append(out, d)
		}
	}
	return out
}

// states returns the Current state of each transition of id, in order.
func (w *watcher) states(id string) []messaging.ActualState {
	var out []messaging.ActualState
	for _, tr := range w.of(id) {
		out = append(out, tr.Current)
	}
	return out
}

func (w *watcher) last(id string) (messaging.Transition, bool) {
	trs := w.of(id)
	if len(trs) == 0 {
		return messaging.Transition{}, false
	}
	return trs[len(trs)-1], true
}

func (w *watcher) waitState(t *testing.T, id string, state messaging.ActualState) {
	t.Helper()
	require.Eventually(t, func() bool {
		tr, ok := w.last(id)
		return ok && tr.Current == state
	}, waitFor, tick, "unit %s never reached %s; saw %v", id, state, w.states(id))
}

// waitCount waits until id has published n transitions.
func (w *watcher) waitCount(t *testing.T, id string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(w.of(id)) >= n
	}, waitFor, tick, "unit %s published %v, want %d transitions", id, w.states(id), n)
}

// gate is an operation that blocks until the test releases it.
type gate struct {
	entered chan struct{}
	release chan unit.Result
}

func newGate() *gate {
	return &gate{
		entered: make(chan struct{}, 16),
		release: make(chan unit.Result),
	}
}

func (g *gate) op(context.Context) (unit.Result, error) {
	g.entered <- struct{}{}
	return <-g.release, nil
}

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(waitFor):
		t.Fatal("operation never started")
	}
}

func (g *gate) finish(t *testing.T, result unit.Result) {
	t.Helper()
	select {
	case g.release <- result:
	case <-time.After(waitFor):
		t.Fatal("operation not waiting for release")
	}
}
