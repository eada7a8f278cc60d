package tracker_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/tracker"
	"github.com/tailored-agentic-units/supervisor/unit"
)

var discard = slog.New(slog.DiscardHandler)

var instant = unit.Operations{Start: unit.Succeed, Stop: unit.Succeed}

func newBus(t *testing.T) *bus.Bus {
	t.Helper()
	b := bus.New(config.BusConfig{Name: t.Name(), Logger: discard})
	t.Cleanup(b.Close)
	return b
}

func newUnit(t *testing.T, b *bus.Bus, id string, ops unit.Operations) *unit.Unit {
	t.Helper()
	u, err := unit.New(id, b, ops, unit.WithLogger(discard))
	require.NoError(t, err)
	return u
}

func track(t *testing.T, b *bus.Bus) *tracker.Tracker {
	t.Helper()
	tr, err := tracker.Track(b, tracker.WithLogger(discard))
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	return tr
}

func send(t *testing.T, b *bus.Bus, id string, cmd messaging.Command) {
	t.Helper()
	require.NoError(t, b.Publish(messaging.NewCommand(id, cmd).Build()))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestTrack_FollowsUnits(t *testing.T) {
	b := newBus(t)
	tr := track(t, b)

	newUnit(t, b, "db", instant)
	web := newUnit(t, b, "web", instant)
	require.NoError(t, web.AddDependency("db"))

	send(t, b, "web", messaging.CommandEnable)

	state, err := tr.Wait(waitCtx(t), tracker.AllIn(messaging.StateStarted))
	require.NoError(t, err)

	units := state.Units()
	require.Len(t, units, 2)
	assert.Equal(t, "db", units[0].ID)
	assert.Equal(t, "web", units[1].ID)
	assert.Equal(t, []string{"db"}, units[1].Dependencies)

	_, err = tr.Wait(waitCtx(t), func(s tracker.SystemState) bool {
		v, _ := s.Unit("web")
		return v.DesiredState() == messaging.DesiredEnabled
	})
	require.NoError(t, err)
}

func TestTrack_LateAttachConverges(t *testing.T) {
	b := newBus(t)

	newUnit(t, b, "db", instant)
	web := newUnit(t, b, "web", instant)
	require.NoError(t, web.AddDependency("db"))

	send(t, b, "db", messaging.CommandEnable)
	early := track(t, b)
	_, err := early.Wait(waitCtx(t), tracker.UnitIn("db", messaging.StateStarted))
	require.NoError(t, err)

	late := track(t, b)
	want := func(s tracker.SystemState) bool {
		db, _ := s.Unit("db")
		w, _ := s.Unit("web")
		return db.ActualState() == messaging.StateStarted &&
			db.DesiredState() == messaging.DesiredEnabled &&
			w.ActualState() == messaging.StateCreated &&
			len(w.Dependencies) == 1
	}

	lateState, err := late.Wait(waitCtx(t), want)
	require.NoError(t, err)
	earlyState, err := early.Wait(waitCtx(t), want)
	require.NoError(t, err)

	assert.True(t, lateState.Equal(earlyState), "late %s, early %s", lateState, earlyState)
}

func TestTrack_Updates(t *testing.T) {
	b := newBus(t)
	tr := track(t, b)

	updates := tr.Updates()
	newUnit(t, b, "db", instant)

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("Updates not signalled for a new unit")
	}

	_, ok := tr.Snapshot().Unit("db")
	assert.True(t, ok)
	assert.NotEqual(t, updates, tr.Updates())
}

func TestTrack_WaitContext(t *testing.T) {
	b := newBus(t)
	tr := track(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Wait(ctx, tracker.UnitIn("missing", messaging.StateStarted))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTrack_Close(t *testing.T) {
	b := newBus(t)
	tr, err := tracker.Track(b, tracker.WithConfig(config.TrackerConfig{Name: "closing", Logger: discard}))
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, err := tr.Wait(context.Background(), tracker.UnitIn("missing", messaging.StateStarted))
		result <- err
	}()

	tr.Close()
	tr.Close()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, tracker.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Close")
	}

	newUnit(t, b, "db", instant)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, tr.Snapshot().Len())
}

func TestTrack_ClosedBus(t *testing.T) {
	b := bus.New(config.BusConfig{Logger: discard})
	b.Close()

	_, err := tracker.Track(b)
	assert.ErrorIs(t, err, bus.ErrClosed)
}
