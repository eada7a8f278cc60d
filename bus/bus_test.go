package bus_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/messaging"
)

// Helper function to create a test bus
func createTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	cfg := config.DefaultBusConfig()
	cfg.Name = "test-bus"
	b := bus.New(cfg)
	t.Cleanup(b.Close)
	return b
}

type collector struct {
	mu       sync.Mutex
	messages []*messaging.Message
	notify   chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 1000)}
}

func (c *collector) handle(msg *messaging.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *collector) waitFor(t *testing.T, n int) []*messaging.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.messages) >= n {
			out := append([]*messaging.Message(nil), c.messages...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timeout waiting for %d messages", n)
		}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := createTestBus(t)
	c := newCollector()

	if _, err := b.Subscribe(nil, c.handle); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	msg := messaging.NewUnitAnnouncement("unit-a").Build()
	if err := b.Publish(msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := c.waitFor(t, 1)
	if got[0].ID != msg.ID {
		t.Errorf("received ID = %v, want %v", got[0].ID, msg.ID)
	}

	metrics := b.Metrics()
	if metrics.Published != 1 {
		t.Errorf("Published = %d, want 1", metrics.Published)
	}
	if metrics.Delivered != 1 {
		t.Errorf("Delivered = %d, want 1", metrics.Delivered)
	}
	if metrics.Subscribers != 1 {
		t.Errorf("Subscribers = %d, want 1", metrics.Subscribers)
	}
}

func TestBus_FIFOPerSubscriber(t *testing.T) {
	b := createTestBus(t)
	first := newCollector()
	second := newCollector()

	b.Subscribe(nil, first.handle)
	b.Subscribe(nil, second.handle)

	const n = 200
	for i := range n {
		b.Publish(messaging.NewUnitAnnouncement(fmt.Sprintf("unit-%03d", i)).Build())
	}

	for _, c := range []*collector{first, second} {
		got := c.waitFor(t, n)
		for i, msg := range got {
			announced, _ := msg.NewUnit()
			if want := fmt.Sprintf("unit-%03d", i); announced.UnitID != want {
				t.Fatalf("message %d = %s, want %s", i, announced.UnitID, want)
			}
		}
	}
}

func TestBus_HotStream(t *testing.T) {
	b := createTestBus(t)

	b.Publish(messaging.NewUnitAnnouncement("before").Build())

	c := newCollector()
	b.Subscribe(nil, c.handle)
	b.Publish(messaging.NewUnitAnnouncement("after").Build())

	got := c.waitFor(t, 1)
	if announced, _ := got[0].NewUnit(); announced.UnitID != "after" {
		t.Errorf("late subscriber received %s, want only messages published after subscribing", announced.UnitID)
	}

	time.Sleep(20 * time.Millisecond)
	if c.count() != 1 {
		t.Errorf("received %d messages, want 1", c.count())
	}
}

func TestBus_Filters(t *testing.T) {
	b := createTestBus(t)
	commands := newCollector()

	b.Subscribe(bus.All(bus.OfKind(messaging.KindCommand), bus.ForTarget("unit-a")), commands.handle)

	b.Publish(messaging.NewCommand("unit-b", messaging.CommandStart).Build())
	b.Publish(messaging.NewTransition("unit-a", messaging.StateCreated, messaging.StateStarting).Build())
	b.Publish(messaging.NewCommand("unit-a", messaging.CommandStop).Build())

	got := commands.waitFor(t, 1)
	if cmd, _ := got[0].Command(); cmd != messaging.CommandStop {
		t.Errorf("received %v, want STOP", cmd)
	}

	time.Sleep(20 * time.Millisecond)
	if commands.count() != 1 {
		t.Errorf("received %d messages, want 1", commands.count())
	}
}

func TestFilter_ForTargetMatchesBroadcast(t *testing.T) {
	filter := bus.ForTarget("unit-a")

	tests := []struct {
		name string
		msg  *messaging.Message
		want bool
	}{
		{"broadcast", messaging.NewReportStateRequest("").Build(), true},
		{"same target", messaging.NewReportStateRequest("unit-a").Build(), true},
		{"other target", messaging.NewReportStateRequest("unit-b").Build(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(tt.msg); got != tt.want {
				t.Errorf("ForTarget(unit-a)(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFilter_Any(t *testing.T) {
	filter := bus.Any(bus.OfKind(messaging.KindNewUnit), bus.OfKind(messaging.KindDependencies))

	if !filter(messaging.NewUnitAnnouncement("a").Build()) {
		t.Error("Any should accept a NewUnit message")
	}
	if filter(messaging.NewCommand("a", messaging.CommandStart).Build()) {
		t.Error("Any should reject a command message")
	}
	if !bus.MatchAll(messaging.NewCommand("a", messaging.CommandStart).Build()) {
		t.Error("MatchAll should accept everything")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := createTestBus(t)
	c := newCollector()

	sub, _ := b.Subscribe(nil, c.handle)
	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after Unsubscribe")
	}

	b.Publish(messaging.NewUnitAnnouncement("ignored").Build())
	time.Sleep(20 * time.Millisecond)

	if c.count() != 0 {
		t.Errorf("received %d messages after Unsubscribe, want 0", c.count())
	}
	if metrics := b.Metrics(); metrics.Subscribers != 0 {
		t.Errorf("Subscribers = %d, want 0", metrics.Subscribers)
	}
}

func TestBus_HandlerMayPublish(t *testing.T) {
	b := createTestBus(t)
	c := newCollector()

	b.Subscribe(bus.OfKind(messaging.KindReportState), func(msg *messaging.Message) {
		b.Publish(messaging.NewTransition("echo", messaging.StateCreated, messaging.StateCreated).Build())
	})
	b.Subscribe(bus.OfKind(messaging.KindTransition), c.handle)

	b.Publish(messaging.NewReportStateRequest("").Build())

	got := c.waitFor(t, 1)
	if tr, _ := got[0].Transition(); tr.UnitID != "echo" {
		t.Errorf("transition unit = %s, want echo", tr.UnitID)
	}
}

func TestBus_HandlerPanicKeepsWorker(t *testing.T) {
	b := createTestBus(t)
	c := newCollector()

	b.Subscribe(nil, func(msg *messaging.Message) {
		if announced, _ := msg.NewUnit(); announced.UnitID == "explode" {
			panic("boom")
		}
		c.handle(msg)
	})

	b.Publish(messaging.NewUnitAnnouncement("explode").Build())
	b.Publish(messaging.NewUnitAnnouncement("survivor").Build())

	got := c.waitFor(t, 1)
	if announced, _ := got[0].NewUnit(); announced.UnitID != "survivor" {
		t.Errorf("received %s, want survivor", announced.UnitID)
	}
}

func TestBus_Close(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.New(config.DefaultBusConfig())
	subs := make([]*bus.Subscription, 0, 3)
	for range 3 {
		sub, err := b.Subscribe(nil, func(*messaging.Message) {})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		subs = append(subs, sub)
	}

	b.Close()
	b.Close()

	for _, sub := range subs {
		<-sub.Done()
	}

	if err := b.Publish(messaging.NewUnitAnnouncement("late").Build()); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrClosed", err)
	}
	if _, err := b.Subscribe(nil, nil); !errors.Is(err, bus.ErrClosed) {
		t.Errorf("Subscribe() after Close error = %v, want ErrClosed", err)
	}
}

func TestBus_PublishNil(t *testing.T) {
	b := createTestBus(t)
	if err := b.Publish(nil); !errors.Is(err, bus.ErrNilMessage) {
		t.Errorf("Publish(nil) error = %v, want ErrNilMessage", err)
	}
}
