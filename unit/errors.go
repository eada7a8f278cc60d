package unit

import "errors"

var (
	ErrEmptyID        = errors.New("unit id is empty")
	ErrNilBus         = errors.New("unit bus is nil")
	ErrNilOperation   = errors.New("unit operation is nil")
	ErrSelfDependency = errors.New("unit cannot depend on itself")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotStopped     = errors.New("unit is not stopped")
	ErrShutdown       = errors.New("unit is shut down")
)
