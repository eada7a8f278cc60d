// Package observability reports what units and the supervisor do as
// events. Level values follow OpenTelemetry SeverityNumbers, so an event
// maps onto an OTel log record without translation.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/tailored-agentic-units/supervisor/messaging"
)

// Level is an event severity on the OTel SeverityNumber scale.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8)
	LevelInfo    Level = 9  // OTel INFO (9-12)
	LevelWarning Level = 13 // OTel WARN (13-16)
	LevelError   Level = 17 // OTel ERROR (17-20)
)

func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// TransitionLevel is the severity of a unit moving from previous to
// current. Reports that repeat the current state are verbose, landing in
// FAILED is a warning.
func TransitionLevel(previous, current messaging.ActualState) Level {
	switch {
	case previous == current:
		return LevelVerbose
	case current == messaging.StateFailed:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// EventType names an event, "<component>.<what>".
type EventType string

// Well-known Data keys.
const (
	AttrUnitID   = "unit_id"
	AttrPrevious = "previous"
	AttrCurrent  = "current"
	AttrComment  = "comment"
	AttrError    = "error"
)

// Event is one observation. Type, Level, Timestamp, Source and Data map to
// the OTel LogRecord EventName, SeverityNumber, Timestamp,
// InstrumentationScope and Attributes.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// UnitID returns the unit the event is about, if any.
func (e Event) UnitID() (string, bool) {
	id, ok := e.Data[AttrUnitID].(string)
	return id, ok && id != ""
}

// Attrs returns Source followed by Data as slog attributes, Data keys in
// sorted order.
func (e Event) Attrs() []slog.Attr {
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	attrs = append(attrs, slog.String("source", e.Source))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Data[k]))
	}
	return attrs
}

func (e Event) String() string {
	if id, ok := e.UnitID(); ok {
		return fmt.Sprintf("%s %s [%s]", e.Level, e.Type, id)
	}
	return fmt.Sprintf("%s %s", e.Level, e.Type)
}

// Observer receives events. OnEvent runs on the reporting unit's control
// plane and must return promptly.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
