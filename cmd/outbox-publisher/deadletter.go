package main

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/angelmondragon/draftforge-backend/pkg/metrics"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox/registry"
)

// deadLetter copies row into the DLQ and marks it terminal in the same
// transaction, so the relay never picks it up again.
func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, resolved *registry.ResolvedEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	message := cause.Error()
	logCtx := r.logg.WithFields(ctx, rowFields(row, resolved))
	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"error_reason": reason,
		"error":        message,
	}), "outbox event dead-lettered")

	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncEvent(string(row.EventType), metrics.OutboxResultDeadLettered)
	return nil
}
