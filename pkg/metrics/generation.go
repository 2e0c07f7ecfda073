package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics tracks submissions, per-document outcomes and credit flow.
// A nil *GenerationMetrics is a no-op.
type GenerationMetrics struct {
	submissions *prometheus.CounterVec
	documents   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	charged     *prometheus.CounterVec
	refunded    prometheus.Counter
}

// NewGenerationMetrics registers the generation metrics on the provided registerer.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_submissions_total",
		Help: "Document generation submissions by outcome.",
	}, []string{"outcome"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_documents_total",
		Help: "Generated documents by type and terminal status.",
	}, []string{"type", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_document_duration_seconds",
		Help:    "Time spent generating a single document.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"type"})
	charged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_charged_total",
		Help: "Credits charged by action.",
	}, []string{"action"})
	refunded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_refunded_total",
		Help: "Credits returned to balances.",
	})
	reg.MustRegister(submissions, documents, duration, charged, refunded)
	return &GenerationMetrics{
		submissions: submissions,
		documents:   documents,
		duration:    duration,
		charged:     charged,
		refunded:    refunded,
	}
}

func (g *GenerationMetrics) IncSubmission(outcome string) {
	if g == nil || g.submissions == nil {
		return
	}
	g.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (g *GenerationMetrics) ObserveDocument(docType, status string, duration time.Duration) {
	if g == nil || g.documents == nil {
		return
	}
	g.documents.WithLabelValues(normalizeLabel(docType), normalizeLabel(status)).Inc()
	g.duration.WithLabelValues(normalizeLabel(docType)).Observe(duration.Seconds())
}

func (g *GenerationMetrics) AddCharged(action string, credits int64) {
	if g == nil || g.charged == nil || credits <= 0 {
		return
	}
	g.charged.WithLabelValues(normalizeLabel(action)).Add(float64(credits))
}

func (g *GenerationMetrics) AddRefunded(credits int64) {
	if g == nil || g.refunded == nil || credits <= 0 {
		return
	}
	g.refunded.Add(float64(credits))
}
