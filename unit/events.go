package unit

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/supervisor/observability"
)

const (
	EventTransition     = observability.EventTransition
	EventCommand        observability.EventType = "unit.command"
	EventDesired        observability.EventType = "unit.desired"
	EventDeferred       observability.EventType = "unit.deferred"
	EventRetryScheduled observability.EventType = "unit.retry.scheduled"
	EventRetryFired     observability.EventType = "unit.retry.fired"
	EventFatal          observability.EventType = "unit.fatal"
	EventShutdown       observability.EventType = "unit.shutdown"
)

func (u *Unit) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	if data == nil {
		data = make(map[string]any, 1)
	}
	data[observability.AttrUnitID] = u.id

	u.observer.OnEvent(context.Background(), observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "unit." + u.id,
		Data:      data,
	})
}
