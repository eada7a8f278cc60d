package bus

import "errors"

// Sentinel errors for the bus.
var (
	ErrClosed        = errors.New("bus closed")
	ErrNilMessage    = errors.New("message is nil")
	ErrMailboxClosed = errors.New("mailbox closed")
)
