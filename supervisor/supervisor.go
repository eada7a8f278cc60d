package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/observability"
	"github.com/tailored-agentic-units/supervisor/tracker"
	"github.com/tailored-agentic-units/supervisor/unit"
)

const (
	EventStart   observability.EventType = "supervisor.start"
	EventApply   observability.EventType = "supervisor.apply"
	EventReload  observability.EventType = "supervisor.reload"
	EventStopped observability.EventType = "supervisor.stop"
)

// Supervisor runs the units declared by a Config on a private bus.
type Supervisor struct {
	name     string
	opts     options
	logger   *slog.Logger
	observer observability.Observer

	bus     *bus.Bus
	tracker *tracker.Tracker
	units   map[string]*unit.Unit
	specs   map[string]UnitSpec

	mu      sync.Mutex
	desired map[string]messaging.DesiredState
	started bool
	stopped bool
}

// New validates cfg and creates its units in CREATED. Dependencies and
// desired states take effect on Start.
func New(cfg Config, opts ...Option) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	observer := o.observer
	if observer == nil {
		resolved, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("supervisor %s: %w", cfg.Name, err)
		}
		observer = resolved
	}

	s := &Supervisor{
		name:     cfg.Name,
		opts:     o,
		logger:   o.logger.With(slog.String("supervisor", cfg.Name)),
		observer: observer,
		bus:      bus.New(config.BusConfig{Name: cfg.Name, Logger: o.logger}),
		units:    make(map[string]*unit.Unit, len(cfg.Units)),
		specs:    make(map[string]UnitSpec, len(cfg.Units)),
		desired:  make(map[string]messaging.DesiredState, len(cfg.Units)),
	}

	tr, err := tracker.Track(s.bus, tracker.WithConfig(config.TrackerConfig{
		Name:   cfg.Name,
		Logger: o.logger,
	}))
	if err != nil {
		s.bus.Close()
		return nil, err
	}
	s.tracker = tr

	for _, spec := range cfg.Units {
		ops, ok := o.operations[spec.ID]
		if !ok {
			ops = specOperations(spec, o.logger)
		}

		u, err := unit.New(spec.ID, s.bus, ops,
			unit.WithConfig(cfg.UnitConfig()),
			unit.WithObserver(observer),
			unit.WithClock(o.clock),
			unit.WithLogger(o.logger),
			unit.WithTracerProvider(o.tracer),
		)
		if err != nil {
			s.abort()
			return nil, err
		}
		s.units[spec.ID] = u
		s.specs[spec.ID] = spec
	}

	return s, nil
}

func (s *Supervisor) Name() string {
	return s.name
}

func (s *Supervisor) Bus() *bus.Bus {
	return s.bus
}

func (s *Supervisor) Tracker() *tracker.Tracker {
	return s.tracker
}

func (s *Supervisor) Snapshot() tracker.SystemState {
	return s.tracker.Snapshot()
}

// Units returns the supervised unit ids in sorted order.
func (s *Supervisor) Units() []string {
	ids := make([]string, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Start wires the declared dependencies and publishes each unit's desired
// state. Calling Start again has no effect.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	for _, id := range s.Units() {
		for _, dep := range s.specs[id].DependsOn {
			if err := s.units[id].AddDependency(dep); err != nil {
				return fmt.Errorf("unit %s: %w", id, err)
			}
		}
	}

	for _, id := range s.Units() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.applyDesired(id, s.specs[id].DesiredState()); err != nil {
			return err
		}
	}
	s.started = true

	s.emit(EventStart, observability.LevelInfo, map[string]any{"units": len(s.units)})
	s.logger.Info("supervisor started", slog.Int("units", len(s.units)))
	return nil
}

// Command publishes cmd to unit id. Unknown commands are rejected here
// rather than stopping the unit.
func (s *Supervisor) Command(id string, cmd messaging.Command) error {
	if _, ok := s.units[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	if !cmd.IsValid() {
		return fmt.Errorf("%w: %s", unit.ErrUnknownCommand, cmd)
	}
	return s.bus.Publish(messaging.NewCommand(id, cmd).Build())
}

// Apply publishes ENABLE, DISABLE or CLEAR_DESIRED_STATE for every unit
// whose desired state in cfg differs from the last one applied. Units
// added to or removed from cfg are reported and skipped.
func (s *Supervisor) Apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	changed := 0
	for _, spec := range cfg.Units {
		if _, ok := s.units[spec.ID]; !ok {
			s.logger.Warn("ignoring unit added to config", slog.String("unit_id", spec.ID))
			continue
		}
		if !slices.Equal(spec.DependsOn, s.specs[spec.ID].DependsOn) {
			s.logger.Warn("ignoring dependency change", slog.String("unit_id", spec.ID))
		}

		d := spec.DesiredState()
		if d == s.desired[spec.ID] {
			continue
		}
		if err := s.applyDesired(spec.ID, d); err != nil {
			return err
		}
		changed++
	}

	for id := range s.units {
		if _, ok := cfg.Unit(id); !ok {
			s.logger.Warn("ignoring unit removed from config", slog.String("unit_id", id))
		}
	}

	s.emit(EventApply, observability.LevelInfo, map[string]any{"changed": changed})
	return nil
}

func (s *Supervisor) applyDesired(id string, d messaging.DesiredState) error {
	var cmd messaging.Command
	switch d {
	case messaging.DesiredEnabled:
		cmd = messaging.CommandEnable
	case messaging.DesiredDisabled:
		cmd = messaging.CommandDisable
	default:
		cmd = messaging.CommandClearDesiredState
	}

	if err := s.bus.Publish(messaging.NewCommand(id, cmd).Build()); err != nil {
		return fmt.Errorf("unit %s: %w", id, err)
	}
	s.desired[id] = d
	return nil
}

// Stop disables every unit, waits for all of them to come to rest, shuts
// them down and closes the bus. Units that fail to stop stay FAILED and
// are shut down from there.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	start := time.Now()
	for _, id := range s.Units() {
		if err := s.bus.Publish(messaging.NewCommand(id, messaging.CommandDisable).Build()); err != nil {
			return err
		}
	}

	pending := s.Units()
	for len(pending) > 0 {
		if _, err := s.tracker.Wait(ctx, s.atRest(pending)); err != nil {
			return fmt.Errorf("supervisor %s: waiting for units to stop: %w", s.name, err)
		}

		updates := s.tracker.Updates()
		pending = s.shutdownUnits(ctx, pending)
		if len(pending) == 0 {
			break
		}

		select {
		case <-updates:
		case <-ctx.Done():
			return fmt.Errorf("supervisor %s: %w", s.name, ctx.Err())
		}
	}

	s.close()

	s.emit(EventStopped, observability.LevelInfo, map[string]any{
		"duration": time.Since(start).String(),
	})
	s.logger.Info("supervisor stopped", slog.Duration("duration", time.Since(start)))
	return nil
}

// atRest returns a predicate that holds when none of ids is starting,
// started or stopping. Units whose control plane has already ended are
// at rest whatever their last reported state.
func (s *Supervisor) atRest(ids []string) func(tracker.SystemState) bool {
	active := tracker.NoneIn(
		messaging.StateStarting,
		messaging.StateStarted,
		messaging.StateStopping,
	)
	return func(state tracker.SystemState) bool {
		var views []tracker.UnitView
		for _, id := range ids {
			select {
			case <-s.units[id].Done():
				continue
			default:
			}
			if v, ok := state.Unit(id); ok {
				views = append(views, v)
			}
		}
		return active(tracker.NewSystemState(views...))
	}
}

// shutdownUnits shuts down ids and returns the ones that were not yet at
// rest.
func (s *Supervisor) shutdownUnits(ctx context.Context, ids []string) []string {
	var pending []string
	for _, id := range ids {
		err := s.units[id].Shutdown(ctx)
		switch {
		case err == nil, errors.Is(err, unit.ErrShutdown):
		case errors.Is(err, unit.ErrNotStopped):
			pending = append(pending, id)
		default:
			s.logger.Warn("unit shutdown failed", slog.String("unit_id", id), slog.String("error", err.Error()))
		}
	}
	return pending
}

// abort releases the units created so far by a failed New.
func (s *Supervisor) abort() {
	for _, u := range s.units {
		_ = u.Shutdown(context.Background())
	}
	s.close()
}

func (s *Supervisor) close() {
	if s.tracker != nil {
		s.tracker.Close()
	}
	s.bus.Close()
}

func (s *Supervisor) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "supervisor." + s.name,
		Data:      data,
	})
}
