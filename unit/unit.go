package unit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/observability"
)

// Unit is a supervised entity with an actual state, a desired state and a
// set of dependencies. All of its state is owned by a single control-plane
// goroutine; everything that affects it arrives as an event in the unit's
// mailbox.
type Unit struct {
	id          string
	bus         *bus.Bus
	ops         Operations
	clock       clock.Clock
	retryPeriod time.Duration
	observer    observability.Observer
	logger      *slog.Logger
	tracer      trace.Tracer

	mailbox *bus.Mailbox[any]
	sub     *bus.Subscription
	done    chan struct{}

	mu  sync.Mutex
	err error

	// control plane
	state      messaging.ActualState
	desired    messaging.DesiredState
	deps       map[string]messaging.ActualState
	inFlight   phase
	waiting    bool
	deferred   messaging.Command
	reevaluate bool
	generation uint64
	retry      clock.Timer
}

type (
	busMessage struct {
		msg *messaging.Message
	}

	dependencyChange struct {
		id  string
		add bool
	}

	retryExpired struct {
		generation uint64
	}

	shutdownRequest struct {
		reply chan error
	}
)

// New creates a unit in CREATED, subscribes it to b and announces it with
// a NewUnit message.
func New(id string, b *bus.Bus, ops Operations, opts ...Option) (*Unit, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if b == nil {
		return nil, ErrNilBus
	}
	if ops.Start == nil || ops.Stop == nil {
		return nil, fmt.Errorf("%w: unit %s", ErrNilOperation, id)
	}

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	observer, err := s.resolveObserver()
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", id, err)
	}

	u := &Unit{
		id:          id,
		bus:         b,
		ops:         ops,
		clock:       s.clock,
		retryPeriod: s.config.RetryPeriod,
		observer:    observer,
		logger:      s.logger.With(slog.String("unit_id", id)),
		tracer:      s.resolveTracer(),
		mailbox:     bus.NewMailbox[any](),
		done:        make(chan struct{}),
		state:       messaging.StateCreated,
		deps:        make(map[string]messaging.ActualState),
	}

	sub, err := b.Subscribe(u.filter(), u.forward)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", id, err)
	}
	u.sub = sub

	go u.run()

	if err := b.Publish(messaging.NewUnitAnnouncement(id).Build()); err != nil {
		u.mailbox.Send(shutdownRequest{reply: make(chan error, 1)})
		return nil, fmt.Errorf("unit %s: %w", id, err)
	}

	u.logger.Debug("unit created", slog.Duration("retry_period", u.retryPeriod))
	return u, nil
}

func (u *Unit) ID() string {
	return u.id
}

// Done is closed once the control plane has stopped, either after a
// successful Shutdown or after a fatal error.
func (u *Unit) Done() <-chan struct{} {
	return u.done
}

// Err returns the fatal error that stopped the unit, if any.
func (u *Unit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// AddDependency registers dependency id with observed state UNKNOWN.
func (u *Unit) AddDependency(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if id == u.id {
		return fmt.Errorf("%w: %s", ErrSelfDependency, id)
	}
	return u.enqueue(dependencyChange{id: id, add: true})
}

func (u *Unit) RemoveDependency(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	return u.enqueue(dependencyChange{id: id})
}

// Shutdown moves a CREATED, STOPPED or FAILED unit to SHUTDOWN and disposes
// its subscription. A unit in any other state reports ErrNotStopped.
func (u *Unit) Shutdown(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := u.enqueue(shutdownRequest{reply: reply}); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-u.done:
		select {
		case err := <-reply:
			return err
		default:
			return u.closedErr()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Unit) enqueue(ev any) error {
	if !u.mailbox.Send(ev) {
		return u.closedErr()
	}
	return nil
}

func (u *Unit) closedErr() error {
	if err := u.Err(); err != nil {
		return err
	}
	return ErrShutdown
}

func (u *Unit) filter() bus.Filter {
	return bus.Any(
		bus.All(
			bus.OfKind(messaging.KindCommand, messaging.KindReportState, messaging.KindReportDependencies),
			bus.ForTarget(u.id),
		),
		bus.OfKind(messaging.KindTransition),
	)
}

func (u *Unit) forward(msg *messaging.Message) {
	u.mailbox.Send(busMessage{msg: msg})
}

func (u *Unit) run() {
	defer close(u.done)

	for {
		ev, err := u.mailbox.Receive(context.Background())
		if err != nil {
			return
		}
		if !u.handle(ev) {
			return
		}
	}
}

// handle processes one control-plane event. It returns false once the
// unit has stopped.
func (u *Unit) handle(ev any) bool {
	switch ev := ev.(type) {
	case busMessage:
		return u.handleMessage(ev.msg)
	case dependencyChange:
		u.changeDependency(ev)
	case outcome:
		u.settle(ev)
	case retryExpired:
		u.fireRetry(ev.generation)
	case shutdownRequest:
		return u.shutdown(ev)
	}
	return true
}

func (u *Unit) handleMessage(msg *messaging.Message) bool {
	switch msg.Kind {
	case messaging.KindCommand:
		cmd, ok := msg.Command()
		if !ok {
			u.fatal(fmt.Errorf("%w: malformed payload %T for unit %s", ErrUnknownCommand, msg.Payload, u.id))
			return false
		}
		return u.handleCommand(cmd)
	case messaging.KindTransition:
		if tr, ok := msg.Transition(); ok && tr.UnitID != u.id {
			u.observeDependency(tr)
		}
	case messaging.KindReportState:
		u.reportState()
	case messaging.KindReportDependencies:
		u.publishDependencies()
	}
	return true
}

func (u *Unit) transition(to messaging.ActualState, comment string) {
	from := u.state
	u.state = to
	if from != to {
		u.generation++
		u.stopRetry()
	}

	u.publish(messaging.NewTransition(u.id, from, to).Comment(comment).Build())

	u.emit(EventTransition, observability.TransitionLevel(from, to), map[string]any{
		observability.AttrPrevious: from.String(),
		observability.AttrCurrent:  to.String(),
		observability.AttrComment:  comment,
	})
	u.logger.Debug(
		"unit transition",
		slog.String("previous", from.String()),
		slog.String("current", to.String()),
		slog.String("comment", comment),
	)
}

func (u *Unit) reportState() {
	u.publish(messaging.NewTransition(u.id, u.state, u.state).Build())
	u.publish(messaging.NewDesiredStateChanged(u.id, u.desired, u.desired).Build())
}

func (u *Unit) publish(msg *messaging.Message) {
	if err := u.bus.Publish(msg); err != nil {
		u.logger.Warn(
			"unit publish failed",
			slog.String("kind", string(msg.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

func (u *Unit) shutdown(req shutdownRequest) bool {
	// Shutdown is accepted from the same states a START would begin from.
	if !u.state.IsStartable() {
		req.reply <- fmt.Errorf("%w: unit %s is %s", ErrNotStopped, u.id, u.state)
		return true
	}

	u.transition(messaging.StateShutdown, "")
	u.emit(EventShutdown, observability.LevelInfo, nil)
	u.terminate(nil)

	req.reply <- nil
	return false
}

func (u *Unit) fatal(err error) {
	u.emit(EventFatal, observability.LevelError, map[string]any{
		observability.AttrError: err.Error(),
		"state":                 u.state.String(),
	})
	u.logger.Error("unit stopped on fatal error", slog.String("error", err.Error()))
	u.terminate(err)
}

func (u *Unit) terminate(err error) {
	u.stopRetry()

	u.mu.Lock()
	u.err = err
	u.mu.Unlock()

	u.sub.Unsubscribe()
	u.mailbox.Close()
}
