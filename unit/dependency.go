package unit

import (
	"slices"

	"github.com/tailored-agentic-units/supervisor/messaging"
)

func (u *Unit) changeDependency(ch dependencyChange) {
	if ch.add {
		if _, exists := u.deps[ch.id]; !exists {
			u.deps[ch.id] = messaging.StateUnknown
		}
		u.publish(messaging.NewReportStateRequest(ch.id).Build())
	} else {
		delete(u.deps, ch.id)
	}
	u.publishDependencies()
}

func (u *Unit) publishDependencies() {
	u.publish(messaging.NewDependencies(u.id, u.deps).Build())
}

// observeDependency records the state of a registered dependency and
// cascades START or STOP to this unit.
func (u *Unit) observeDependency(tr messaging.Transition) {
	prev, ok := u.deps[tr.UnitID]
	if !ok {
		return
	}
	u.deps[tr.UnitID] = tr.Current

	switch {
	case prev != messaging.StateStarted && len(u.unmetDependencies()) == 0:
		if u.awaitsDependencies() {
			u.publish(messaging.NewCommand(u.id, messaging.CommandStart).Build())
		}
	case prev == messaging.StateStarted && tr.Current != messaging.StateStarted:
		if u.state == messaging.StateStarted || u.state == messaging.StateStarting {
			u.publish(messaging.NewCommand(u.id, messaging.CommandStop).Build())
		}
	}
}

// awaitsDependencies reports whether the unit wants to start once its
// dependencies are up: it is parked in STARTING, or it is ENABLED and not
// already active.
func (u *Unit) awaitsDependencies() bool {
	if u.state == messaging.StateStarting {
		return u.waiting
	}
	return u.desired == messaging.DesiredEnabled && u.state != messaging.StateStarted
}

func (u *Unit) unmetDependencies() []string {
	var unmet []string
	for id, state := range u.deps {
		if state != messaging.StateStarted {
			unmet = append(unmet, id)
		}
	}
	slices.Sort(unmet)
	return unmet
}
