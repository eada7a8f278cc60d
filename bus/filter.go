package bus

import (
	"slices"

	"github.com/tailored-agentic-units/supervisor/messaging"
)

// Filter decides whether a subscription receives a message.
type Filter func(msg *messaging.Message) bool

// MatchAll accepts every message.
func MatchAll(*messaging.Message) bool {
	return true
}

// OfKind accepts messages whose kind is one of kinds.
func OfKind(kinds ...messaging.Kind) Filter {
	return func(msg *messaging.Message) bool {
		return slices.Contains(kinds, msg.Kind)
	}
}

// ForTarget accepts messages addressed to id. Broadcasts match any target.
func ForTarget(id string) Filter {
	return func(msg *messaging.Message) bool {
		return msg.AddressedTo(id)
	}
}

// All accepts a message when every filter does.
func All(filters ...Filter) Filter {
	return func(msg *messaging.Message) bool {
		for _, f := range filters {
			if !f(msg) {
				return false
			}
		}
		return true
	}
}

// Any accepts a message when at least one filter does.
func Any(filters ...Filter) Filter {
	return func(msg *messaging.Message) bool {
		for _, f := range filters {
			if f(msg) {
				return true
			}
		}
		return false
	}
}
