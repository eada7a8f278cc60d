package unit

import (
	"fmt"
	"log/slog"

	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/observability"
)

// handleCommand applies cmd to the unit. It returns false when cmd is not
// a known command, which stops the unit.
func (u *Unit) handleCommand(cmd messaging.Command) bool {
	u.emit(EventCommand, observability.LevelVerbose, map[string]any{
		"command": cmd.String(),
		"state":   u.state.String(),
	})

	switch cmd {
	case messaging.CommandStart:
		u.start()
	case messaging.CommandStop:
		u.stop()
	case messaging.CommandEnable:
		u.setDesired(messaging.DesiredEnabled)
	case messaging.CommandDisable:
		u.setDesired(messaging.DesiredDisabled)
	case messaging.CommandClearDesiredState:
		u.setDesired(messaging.DesiredUnset)
	default:
		u.fatal(fmt.Errorf("%w: %s sent to unit %s", ErrUnknownCommand, cmd, u.id))
		return false
	}
	return true
}

func (u *Unit) start() {
	switch {
	case u.state.IsStartable():
		if unmet := u.unmetDependencies(); len(unmet) > 0 {
			u.waiting = true
			u.transition(messaging.StateStarting, "waiting for dependencies")
			for _, dep := range unmet {
				u.publish(messaging.NewCommand(dep, messaging.CommandStart).Build())
			}
			return
		}
		u.transition(messaging.StateStarting, "")
		u.launch(phaseStart)

	case u.state == messaging.StateStarting:
		if u.inFlight != phaseNone {
			u.deferred = 0
			return
		}
		if len(u.unmetDependencies()) > 0 {
			return
		}
		u.waiting = false
		u.transition(messaging.StateStarting, "dependencies started")
		u.launch(phaseStart)

	case u.state == messaging.StateStarted:
		u.transition(messaging.StateStarted, "already started")

	case u.state == messaging.StateStopping:
		u.deferCommand(messaging.CommandStart)
	}
}

func (u *Unit) stop() {
	switch u.state {
	case messaging.StateStarted, messaging.StateFailed:
		u.transition(messaging.StateStopping, "")
		u.launch(phaseStop)

	case messaging.StateStarting:
		if u.inFlight != phaseNone {
			u.deferCommand(messaging.CommandStop)
			return
		}
		u.waiting = false
		u.transition(messaging.StateStopping, "")
		u.launch(phaseStop)

	case messaging.StateStopping:
		u.deferred = 0
	}
}

func (u *Unit) deferCommand(cmd messaging.Command) {
	u.deferred = cmd
	u.emit(EventDeferred, observability.LevelVerbose, map[string]any{
		"command":   cmd.String(),
		"in_flight": u.inFlight.String(),
	})
}

// setDesired records intent. Any action it implies waits for an in-flight
// operation to settle. ENABLE drops a deferred STOP and DISABLE a deferred
// START; CLEAR_DESIRED_STATE leaves a deferred command in place.
func (u *Unit) setDesired(d messaging.DesiredState) {
	prev := u.desired
	u.desired = d

	switch {
	case d == messaging.DesiredEnabled && u.deferred == messaging.CommandStop,
		d == messaging.DesiredDisabled && u.deferred == messaging.CommandStart:
		u.deferred = 0
	}

	if prev != d {
		u.generation++
		u.stopRetry()
		u.publish(messaging.NewDesiredStateChanged(u.id, prev, d).Build())
		u.emit(EventDesired, observability.LevelInfo, map[string]any{
			"previous": prev.String(),
			"current":  d.String(),
		})
	}

	if u.inFlight != phaseNone {
		u.reevaluate = true
		u.emit(EventDeferred, observability.LevelVerbose, map[string]any{
			"desired":   d.String(),
			"in_flight": u.inFlight.String(),
		})
		return
	}
	u.reconcile()
}

// reconcile issues the START or STOP that brings the actual state in line
// with the desired state.
func (u *Unit) reconcile() {
	active := u.state == messaging.StateStarted || u.state == messaging.StateStarting

	switch {
	case u.desired == messaging.DesiredEnabled && !active:
		u.publish(messaging.NewCommand(u.id, messaging.CommandStart).Build())
	case u.desired == messaging.DesiredDisabled && active:
		u.publish(messaging.NewCommand(u.id, messaging.CommandStop).Build())
	}
}

func (u *Unit) launch(p phase) {
	u.inFlight = p

	op := u.ops.Start
	if p == phaseStop {
		op = u.ops.Stop
	}

	go func() {
		u.mailbox.Send(execute(u.tracer, u.id, p, op))
	}()
}

func (u *Unit) settle(out outcome) {
	u.inFlight = phaseNone

	to := messaging.StateStarted
	if out.phase == phaseStop {
		to = messaging.StateStopped
	}
	if out.result != Success {
		to = messaging.StateFailed
	}
	u.transition(to, out.comment)

	if to == messaging.StateFailed && u.desired == messaging.DesiredEnabled {
		u.scheduleRetry()
	}

	// A deferred START or STOP is the latest explicit instruction and
	// replaces the pending re-check of the desired state.
	switch {
	case u.deferred != 0:
		cmd := u.deferred
		u.deferred = 0
		u.reevaluate = false
		u.logger.Debug("replaying deferred command", slog.String("command", cmd.String()))
		u.publish(messaging.NewCommand(u.id, cmd).Build())
	case u.reevaluate:
		u.reevaluate = false
		if to != messaging.StateFailed {
			u.reconcile()
		}
	}
}
