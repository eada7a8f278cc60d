package supervisor

import "errors"

var (
	ErrNoUnits           = errors.New("no units configured")
	ErrEmptyUnitID       = errors.New("unit id is empty")
	ErrDuplicateUnit     = errors.New("duplicate unit id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrSelfDependency    = errors.New("unit depends on itself")
	ErrDependencyCycle   = errors.New("dependency cycle")
	ErrInvalidDesired    = errors.New("invalid desired state")
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrUnknownUnit       = errors.New("unknown unit")
	ErrStopped           = errors.New("supervisor is stopped")
)
