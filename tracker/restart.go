package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/messaging"
)

type restartPhase int

const (
	restartIdle restartPhase = iota
	restartArmed
	restartLeft
)

// restartDetector follows the transitions of one unit. Its phase is only
// touched by the subscription worker.
type restartDetector struct {
	id    string
	phase restartPhase
	out   chan bool
	once  sync.Once
	done  chan struct{}
}

func (d *restartDetector) observe(msg *messaging.Message) {
	tr, ok := msg.Transition()
	if !ok || tr.UnitID != d.id {
		return
	}

	if tr.Current.IsTerminal() {
		d.finish(false)
		return
	}

	switch tr.Current {
	case messaging.StateStarted:
		if d.phase == restartLeft {
			d.finish(true)
			return
		}
		d.phase = restartArmed
	case messaging.StateStopping, messaging.StateStopped:
		if d.phase == restartArmed {
			d.phase = restartLeft
		}
	case messaging.StateStarting:
	default:
		d.phase = restartIdle
	}
}

func (d *restartDetector) finish(restarted bool) {
	d.once.Do(func() {
		if restarted {
			d.out <- true
		}
		close(d.out)
		close(d.done)
	})
}

// UnitRestarted returns a channel that receives true once unit id is seen
// leaving STARTED, passing through STOPPING or STOPPED, and reaching
// STARTED again. The channel is closed after that value, or without a
// value when ctx ends first or the unit shuts down. A cycle through FAILED
// does not count.
func UnitRestarted(ctx context.Context, b *bus.Bus, id string) (<-chan bool, error) {
	d := &restartDetector{
		id:   id,
		out:  make(chan bool, 1),
		done: make(chan struct{}),
	}

	sub, err := b.Subscribe(
		bus.OfKind(messaging.KindTransition),
		d.observe,
	)
	if err != nil {
		return nil, fmt.Errorf("restart detector %s: %w", id, err)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-d.done:
		}
		sub.Unsubscribe()
		d.finish(false)
	}()

	if err := b.Publish(messaging.NewReportStateRequest(id).Build()); err != nil {
		sub.Unsubscribe()
		d.finish(false)
		return nil, fmt.Errorf("restart detector %s: %w", id, err)
	}

	return d.out, nil
}
