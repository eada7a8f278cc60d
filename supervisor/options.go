package supervisor

import (
	"log/slog"
	"time"

	"github.com/juju/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/supervisor/observability"
	"github.com/tailored-agentic-units/supervisor/unit"
)

const defaultDebounce = 100 * time.Millisecond

// Option configures a Supervisor.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	observer   observability.Observer
	clock      clock.Clock
	tracer     trace.TracerProvider
	operations map[string]unit.Operations
	debounce   time.Duration
}

func defaultOptions() options {
	return options{
		logger:     slog.Default(),
		clock:      clock.WallClock,
		operations: make(map[string]unit.Operations),
		debounce:   defaultDebounce,
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver overrides the observer named in the config.
func WithObserver(observer observability.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithClock sets the clock for unit retries and config reload debouncing.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithOperations replaces the command-backed operations of unit id.
func WithOperations(id string, ops unit.Operations) Option {
	return func(o *options) {
		o.operations[id] = ops
	}
}

// WithDebounce sets how long Watch waits for a config file to settle.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}
