package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/metrics"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox/registry"
)

type fakeGuard struct {
	seen map[uuid.UUID]bool
	err  error
}

func (g *fakeGuard) Claim(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[id] {
		return false, nil
	}
	g.seen[id] = true
	return true, nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metricLoop
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func newTestConsumer(t *testing.T, guard *fakeGuard) (*Consumer, *prometheus.Registry) {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{GenerationTopic: "generation-topic"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	promReg := prometheus.NewRegistry()
	m := metrics.NewEventMetrics(promReg)
	c, err := NewConsumer(ConsumerParams{
		Subscription: &pubsub.Subscriber{},
		Registry:     reg,
		Guard:        guard,
		Metrics:      m,
		Logger:       logger.Nop(),
	})
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return c, promReg
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, eventID string, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:   "msg-1",
		Data: envelope,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(eventType),
			"aggregate_type": string(aggregateType),
			"aggregate_id":   aggregateID.String(),
		},
	}
}

func TestConsumerCountsChargedCreditsOnce(t *testing.T) {
	guard := &fakeGuard{seen: map[uuid.UUID]bool{}}
	c, m := newTestConsumer(t, guard)

	accountID := uuid.New()
	msg := buildMessage(t, enums.EventCreditsCharged, enums.AggregateAccount, accountID, uuid.NewString(), payloads.CreditsChargedEvent{
		AccountID: accountID,
		Action:    enums.CreditActionDocumentGeneration,
		Credits:   600,
	})

	if got := c.process(context.Background(), msg); got != outcomeHandled {
		t.Fatalf("expected handled, got %s", got)
	}
	if got := c.process(context.Background(), msg); got != outcomeDuplicate {
		t.Fatalf("expected duplicate on redelivery, got %s", got)
	}

	credits := counterValue(t, m, "events_credits_total", map[string]string{
		"direction": "charged",
		"action":    string(enums.CreditActionDocumentGeneration),
	})
	if credits != 600 {
		t.Fatalf("expected 600 charged credits, got %v", credits)
	}
	if n := counterValue(t, m, "events_consumed_total", map[string]string{
		"event_type": string(enums.EventCreditsCharged),
		"result":     "duplicate",
	}); n != 1 {
		t.Fatalf("expected one duplicate, got %v", n)
	}
}

func TestConsumerSettlesCompletedGeneration(t *testing.T) {
	c, m := newTestConsumer(t, &fakeGuard{seen: map[uuid.UUID]bool{}})

	projectID := uuid.New()
	msg := buildMessage(t, enums.EventGenerationCompleted, enums.AggregateProject, projectID, uuid.NewString(), payloads.GenerationCompletedEvent{
		ProjectID: projectID,
		Completed: 3,
		Failed:    1,
	})

	if got := c.process(context.Background(), msg); got != outcomeHandled {
		t.Fatalf("expected handled, got %s", got)
	}
	if v := counterValue(t, m, "events_documents_settled_total", map[string]string{"outcome": "completed"}); v != 3 {
		t.Fatalf("expected 3 completed, got %v", v)
	}
	if v := counterValue(t, m, "events_documents_settled_total", map[string]string{"outcome": "error"}); v != 1 {
		t.Fatalf("expected 1 failed, got %v", v)
	}
}

func TestConsumerSkipsUnknownEventType(t *testing.T) {
	c, _ := newTestConsumer(t, &fakeGuard{seen: map[uuid.UUID]bool{}})

	msg := buildMessage(t, enums.OutboxEventType("order_paid"), enums.AggregateAccount, uuid.New(), uuid.NewString(), map[string]any{"x": 1})
	if got := c.process(context.Background(), msg); got != outcomeSkipped {
		t.Fatalf("expected skipped, got %s", got)
	}
}

func TestConsumerSkipsMissingAggregate(t *testing.T) {
	c, _ := newTestConsumer(t, &fakeGuard{seen: map[uuid.UUID]bool{}})

	msg := buildMessage(t, enums.EventCreditsRefunded, enums.AggregateAccount, uuid.New(), uuid.NewString(), payloads.CreditsRefundedEvent{Credits: 200})
	msg.Attributes["aggregate_id"] = "not-a-uuid"
	if got := c.process(context.Background(), msg); got != outcomeSkipped {
		t.Fatalf("expected skipped, got %s", got)
	}
}

func TestConsumerRetriesWhenGuardUnavailable(t *testing.T) {
	c, _ := newTestConsumer(t, &fakeGuard{err: errors.New("redis down")})

	accountID := uuid.New()
	msg := buildMessage(t, enums.EventCreditsRefunded, enums.AggregateAccount, accountID, uuid.NewString(), payloads.CreditsRefundedEvent{
		AccountID: accountID,
		Credits:   200,
		Reason:    "no documents created",
	})
	if got := c.process(context.Background(), msg); got != outcomeRetry {
		t.Fatalf("expected retry, got %s", got)
	}
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	if _, err := NewConsumer(ConsumerParams{}); err == nil {
		t.Fatal("expected error for missing subscription")
	}
}
