package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGenerationMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGenerationMetrics(reg)

	m.IncSubmission("success")
	m.IncSubmission("success")
	m.IncSubmission("insufficient_credits")
	m.ObserveDocument("prd", "completed", 2*time.Second)
	m.AddCharged("document_generation", 600)
	m.AddRefunded(200)
	m.AddRefunded(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "generation_submissions_total", "outcome", "success"); err != nil || got != 2 {
		t.Fatalf("expected 2 successful submissions, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "credits_charged_total", "action", "document_generation"); err != nil || got != 600 {
		t.Fatalf("expected 600 credits charged, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "generation_document_duration_seconds", "type", "prd"); err != nil || got != 2 {
		t.Fatalf("expected duration sum 2s, got %f (%v)", got, err)
	}
	refunded := findMetricFamily(mfs, "credits_refunded_total")
	if refunded == nil || refunded.GetMetric()[0].GetCounter().GetValue() != 200 {
		t.Fatalf("expected 200 credits refunded")
	}
}

func TestNilGenerationMetricsIsSafe(t *testing.T) {
	var m *GenerationMetrics
	m.IncSubmission("success")
	m.ObserveDocument("prd", "error", time.Second)
	m.AddCharged("ai_answer", 10)
	m.AddRefunded(10)

	empty := NewGenerationMetrics(nil)
	empty.IncSubmission("success")
}
