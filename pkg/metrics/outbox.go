package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutboxResultPublished    = "published"
	OutboxResultFailed       = "failed"
	OutboxResultDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks what the outbox publisher does with each row. A nil
// *OutboxMetrics is a no-op.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	publish prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	publish := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_publish_seconds",
		Help:    "Time spent waiting for Pub/Sub to acknowledge a publish.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	})
	reg.MustRegister(events, publish)
	return &OutboxMetrics{events: events, publish: publish}
}

func (o *OutboxMetrics) IncEvent(eventType, result string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (o *OutboxMetrics) ObservePublish(d time.Duration) {
	if o == nil || o.publish == nil {
		return
	}
	o.publish.Observe(d.Seconds())
}
