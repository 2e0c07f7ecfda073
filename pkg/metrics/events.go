package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventMetrics counts domain events seen by the events worker. A nil
// *EventMetrics is a no-op.
type EventMetrics struct {
	consumed *prometheus.CounterVec
	settled  *prometheus.CounterVec
	credits  *prometheus.CounterVec
}

func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	if reg == nil {
		return &EventMetrics{}
	}
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Domain events received by the events worker, by type and result.",
	}, []string{"event_type", "result"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_documents_settled_total",
		Help: "Documents reported settled by generation_completed events.",
	}, []string{"outcome"})
	credits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_credits_total",
		Help: "Credits moved according to ledger events.",
	}, []string{"direction", "action"})
	reg.MustRegister(consumed, settled, credits)
	return &EventMetrics{consumed: consumed, settled: settled, credits: credits}
}

func (e *EventMetrics) IncConsumed(eventType, result string) {
	if e == nil || e.consumed == nil {
		return
	}
	e.consumed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (e *EventMetrics) AddSettled(completed, failed int) {
	if e == nil || e.settled == nil {
		return
	}
	if completed > 0 {
		e.settled.WithLabelValues("completed").Add(float64(completed))
	}
	if failed > 0 {
		e.settled.WithLabelValues("error").Add(float64(failed))
	}
}

func (e *EventMetrics) AddCredits(direction, action string, credits int64) {
	if e == nil || e.credits == nil || credits <= 0 {
		return
	}
	e.credits.WithLabelValues(normalizeLabel(direction), normalizeLabel(action)).Add(float64(credits))
}
