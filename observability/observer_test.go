package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/observability"
	"github.com/tailored-agentic-units/supervisor/observability/observabilitytest"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{observability.LevelVerbose, slog.LevelDebug},
		{observability.LevelInfo, slog.LevelInfo},
		{observability.LevelWarning, slog.LevelWarn},
		{observability.LevelError, slog.LevelError},
	}

	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func transitionEvent(unitID, current string) observability.Event {
	return observability.Event{
		Type:      observability.EventTransition,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "unit." + unitID,
		Data: map[string]any{
			"unit_id":  unitID,
			"previous": "CREATED",
			"current":  current,
		},
	}
}

func TestSlogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	obs := observability.NewSlogObserver(logger)
	obs.OnEvent(context.Background(), transitionEvent("db", "STARTING"))

	out := buf.String()
	for _, want := range []string{"unit.transition", "source=unit.db", "current=STARTING", "unit_id=db"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Index(out, "current=") > strings.Index(out, "unit_id=") {
		t.Errorf("attributes not sorted: %s", out)
	}
}

func TestSlogObserver_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	obs := observability.NewSlogObserver(logger)
	obs.OnEvent(context.Background(), observability.Event{Type: "unit.command", Level: observability.LevelVerbose})

	if buf.Len() != 0 {
		t.Errorf("debug event written at warn level: %s", buf.String())
	}

	obs.OnEvent(context.Background(), observability.Event{Type: "unit.fatal", Level: observability.LevelError})
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("error event not written: %s", buf.String())
	}
}

func TestMultiObserver(t *testing.T) {
	first := observabilitytest.NewRecorder()
	second := observabilitytest.NewRecorder()

	multi := observability.NewMultiObserver(first, nil, second)

	multi.OnEvent(context.Background(), transitionEvent("db", "STARTED"))

	if len(first.Events()) != 1 || len(second.Events()) != 1 {
		t.Errorf("fan out = %d, %d; want 1, 1", len(first.Events()), len(second.Events()))
	}

	observability.NewMultiObserver().OnEvent(context.Background(), transitionEvent("db", "STARTED"))
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"noop", "slog"} {
		if _, err := observability.GetObserver(name); err != nil {
			t.Errorf("GetObserver(%q) error = %v", name, err)
		}
	}

	_, err := observability.GetObserver("missing")
	if err == nil {
		t.Fatal("GetObserver(missing) should fail")
	}
	if !strings.Contains(err.Error(), "noop, slog") {
		t.Errorf("error should list registered observers: %v", err)
	}

	rec := observabilitytest.NewRecorder()
	observability.RegisterObserver("test-recorder", rec)

	got, err := observability.GetObserver("test-recorder")
	if err != nil {
		t.Fatalf("GetObserver(test-recorder) error = %v", err)
	}
	if got != rec {
		t.Error("GetObserver returned a different observer")
	}
	if !slices.Contains(observability.Observers(), "test-recorder") {
		t.Errorf("Observers() = %v, missing test-recorder", observability.Observers())
	}
	if !slices.IsSorted(observability.Observers()) {
		t.Errorf("Observers() not sorted: %v", observability.Observers())
	}
}

func TestTransitionLevel(t *testing.T) {
	tests := []struct {
		name     string
		previous messaging.ActualState
		current  messaging.ActualState
		want     observability.Level
	}{
		{"report", messaging.StateStarted, messaging.StateStarted, observability.LevelVerbose},
		{"change", messaging.StateStarting, messaging.StateStarted, observability.LevelInfo},
		{"failure", messaging.StateStarting, messaging.StateFailed, observability.LevelWarning},
		{"failed report", messaging.StateFailed, messaging.StateFailed, observability.LevelVerbose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := observability.TransitionLevel(tt.previous, tt.current); got != tt.want {
				t.Errorf("TransitionLevel(%s, %s) = %v, want %v", tt.previous, tt.current, got, tt.want)
			}
		})
	}
}

func TestEvent_UnitID(t *testing.T) {
	if id, ok := transitionEvent("db", "STARTED").UnitID(); !ok || id != "db" {
		t.Errorf("UnitID() = %q, %v; want db, true", id, ok)
	}

	for _, data := range []map[string]any{nil, {observability.AttrUnitID: ""}, {observability.AttrUnitID: 7}} {
		ev := observability.Event{Type: "supervisor.start", Data: data}
		if _, ok := ev.UnitID(); ok {
			t.Errorf("UnitID() with data %v should report no unit", data)
		}
	}
}

func TestEvent_String(t *testing.T) {
	if got := transitionEvent("db", "STARTED").String(); got != "INFO unit.transition [db]" {
		t.Errorf("String() = %q", got)
	}
	ev := observability.Event{Type: "supervisor.start", Level: observability.LevelInfo}
	if got := ev.String(); got != "INFO supervisor.start" {
		t.Errorf("String() = %q", got)
	}
}
