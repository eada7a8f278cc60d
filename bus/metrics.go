package bus

import (
	"maps"

	"github.com/tailored-agentic-units/supervisor/messaging"
)

// MetricsSnapshot is a point-in-time copy of the bus counters.
type MetricsSnapshot struct {
	Subscribers int64
	Published   int64
	Delivered   int64

	// Pending counts messages queued in subscription mailboxes and not yet
	// handled.
	Pending int64

	// PublishedByKind splits Published by message kind.
	PublishedByKind map[messaging.Kind]int64
}

// metrics is guarded by Bus.mu.
type metrics struct {
	subscribers int64
	delivered   int64
	published   map[messaging.Kind]int64
}

func newMetrics() metrics {
	return metrics{published: make(map[messaging.Kind]int64)}
}

func (m *metrics) recordPublish(kind messaging.Kind, delivered int) {
	m.published[kind]++
	m.delivered += int64(delivered)
}

func (m *metrics) snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Subscribers:     m.subscribers,
		Delivered:       m.delivered,
		PublishedByKind: maps.Clone(m.published),
	}
	for _, n := range m.published {
		snap.Published += n
	}
	return snap
}
