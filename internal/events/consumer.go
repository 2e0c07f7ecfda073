package events

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/metrics"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox/registry"
)

const consumerName = "generation-events"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
}

type ConsumerParams struct {
	Subscription receiver
	Registry     resolver
	Guard        claimer
	Metrics      *metrics.EventMetrics
	Logger       *logger.Logger
}

// Consumer reads credit and generation events published from the outbox and
// folds them into metrics. Each event is handled at most once per claim TTL.
type Consumer struct {
	subscription receiver
	registry     resolver
	guard        claimer
	metrics      *metrics.EventMetrics
	logg         *logger.Logger
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	switch {
	case p.Subscription == nil:
		return nil, fmt.Errorf("generation subscription required")
	case p.Registry == nil:
		return nil, fmt.Errorf("event registry required")
	case p.Guard == nil:
		return nil, fmt.Errorf("idempotency guard required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: p.Subscription,
		registry:     p.Registry,
		guard:        p.Guard,
		metrics:      p.Metrics,
		logg:         p.Logger,
	}, nil
}

// Run receives messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == outcomeRetry {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome int

const (
	outcomeHandled outcome = iota
	outcomeSkipped
	outcomeDuplicate
	outcomeRetry
)

func (o outcome) String() string {
	switch o {
	case outcomeHandled:
		return "handled"
	case outcomeSkipped:
		return "skipped"
	case outcomeDuplicate:
		return "duplicate"
	default:
		return "retry"
	}
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) outcome {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id":   msg.ID,
		"event_type":   eventType,
		"aggregate_id": msg.Attributes["aggregate_id"],
	})

	result := c.handle(ctx, logCtx, msg)
	c.metrics.IncConsumed(eventType, result.String())
	return result
}

func (c *Consumer) handle(ctx, logCtx context.Context, msg *pubsub.Message) outcome {
	aggregateID, err := uuid.Parse(msg.Attributes["aggregate_id"])
	if err != nil {
		c.logg.Warn(logCtx, "dropping event without aggregate id")
		return outcomeSkipped
	}

	resolved, err := c.registry.Resolve(models.OutboxEvent{
		EventType:     enums.OutboxEventType(msg.Attributes["event_type"]),
		AggregateType: enums.OutboxAggregateType(msg.Attributes["aggregate_type"]),
		AggregateID:   aggregateID,
		Payload:       msg.Data,
	})
	if err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping unreadable event")
			return outcomeSkipped
		}
		c.logg.Error(logCtx, "resolve event", err)
		return outcomeRetry
	}

	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		c.logg.Warn(logCtx, "dropping event with invalid event id")
		return outcomeSkipped
	}

	first, err := c.guard.Claim(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return outcomeRetry
	}
	if !first {
		c.logg.Debug(logCtx, "event already processed")
		return outcomeDuplicate
	}

	c.apply(logCtx, resolved.Payload)
	return outcomeHandled
}

func (c *Consumer) apply(logCtx context.Context, payload any) {
	switch p := payload.(type) {
	case *payloads.CreditsChargedEvent:
		c.metrics.AddCredits("charged", string(p.Action), p.Credits)
		c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
			"account_id": p.AccountID.String(),
			"action":     p.Action,
			"credits":    p.Credits,
		}), "credits charged")
	case *payloads.CreditsRefundedEvent:
		c.metrics.AddCredits("refunded", "", p.Credits)
		c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
			"account_id": p.AccountID.String(),
			"credits":    p.Credits,
			"reason":     p.Reason,
		}), "credits refunded")
	case *payloads.GenerationSubmittedEvent:
		c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
			"project_id": p.ProjectID.String(),
			"documents":  len(p.DocumentTypes),
			"charged":    p.Charged,
		}), "generation submitted")
	case *payloads.GenerationCompletedEvent:
		c.metrics.AddSettled(p.Completed, p.Failed)
		c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
			"project_id": p.ProjectID.String(),
			"completed":  p.Completed,
			"failed":     p.Failed,
		}), "generation completed")
	}
}
