package unit

import (
	"log/slog"
	"time"

	"github.com/juju/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/supervisor/config"
	"github.com/tailored-agentic-units/supervisor/observability"
)

const instrumentationName = "github.com/tailored-agentic-units/supervisor/unit"

// Option configures a Unit at construction.
type Option func(*settings)

type settings struct {
	config   config.UnitConfig
	clock    clock.Clock
	observer observability.Observer
	logger   *slog.Logger
	tracer   trace.TracerProvider
}

func defaultSettings() settings {
	return settings{
		config: config.DefaultUnitConfig(),
		clock:  clock.WallClock,
		logger: slog.Default(),
	}
}

// WithConfig merges cfg over the defaults. The configured observer name is
// resolved through the observability registry unless WithObserver is also
// given.
func WithConfig(cfg config.UnitConfig) Option {
	return func(s *settings) {
		s.config.Merge(&cfg)
	}
}

func WithRetryPeriod(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.config.RetryPeriod = d
		}
	}
}

// WithClock replaces the wall clock used for retry timers.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithObserver(observer observability.Observer) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracerProvider sets the provider for operation spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) {
		s.tracer = tp
	}
}

func (s *settings) resolveObserver() (observability.Observer, error) {
	if s.observer != nil {
		return s.observer, nil
	}
	return observability.GetObserver(s.config.Observer)
}

func (s *settings) resolveTracer() trace.Tracer {
	tp := s.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}
