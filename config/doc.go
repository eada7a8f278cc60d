// Package config provides configuration structures for the bus, units and
// trackers.
//
// Each structure has a DefaultXConfig constructor establishing sensible
// defaults and a Merge method that applies the non-zero fields of another
// value on top, so partial configurations layer over the defaults:
//
//	cfg := config.DefaultUnitConfig()
//	cfg.Merge(&config.UnitConfig{RetryPeriod: time.Second})
//	// RetryPeriod: 1s, Observer: "noop"
//
// # Bus Configuration
//
//	cfg := config.BusConfig{
//	    Name:   "supervisor",
//	    Logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
//	}
//	b := bus.New(cfg)
//
// # Unit Configuration
//
// UnitConfig carries the retry period and the name of the observer that
// receives unit events. Observer names are resolved at construction time
// through the observability registry.
package config
