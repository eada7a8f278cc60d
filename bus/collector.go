package bus

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tailored-agentic-units/supervisor/messaging"
)

// Collector exposes the metrics of a bus to Prometheus. Published messages
// are labelled by kind.
type Collector struct {
	bus         *Bus
	subscribers *prometheus.Desc
	pending     *prometheus.Desc
	published   *prometheus.Desc
	delivered   *prometheus.Desc
}

func NewCollector(b *Bus, namespace string) *Collector {
	labels := prometheus.Labels{"bus": b.Name()}
	return &Collector{
		bus: b,
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "subscribers"),
			"Active bus subscriptions.", nil, labels,
		),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "pending_messages"),
			"Messages queued in subscription mailboxes.", nil, labels,
		),
		published: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "published_total"),
			"Messages published on the bus by kind.", []string{"kind"}, labels,
		),
		delivered: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "delivered_total"),
			"Messages delivered to subscription mailboxes.", nil, labels,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.subscribers
	ch <- c.pending
	ch <- c.published
	ch <- c.delivered
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.bus.Metrics()
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(m.Subscribers))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(m.Pending))
	ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, float64(m.Delivered))

	kinds := make([]messaging.Kind, 0, len(m.PublishedByKind))
	for kind := range m.PublishedByKind {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(m.PublishedByKind[kind]), string(kind))
	}
}
