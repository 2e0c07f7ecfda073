package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/internal/documents"
	"github.com/angelmondragon/draftforge-backend/internal/generation"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox"
)

const (
	defaultStuckAfter   = 30 * time.Minute
	staleBatchSize      = 200
	staleTimeoutMessage = "generation timed out"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stuckDocumentStore interface {
	ListStuck(ctx context.Context, before time.Time, limit int) ([]models.Document, error)
	SetStatus(ctx context.Context, id uuid.UUID, update documents.StatusUpdate) (*models.Document, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Document, error)
}

type StaleGenerationJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Documents  stuckDocumentStore
	Projects   projects.Repository
	Outbox     outbox.Emitter
	StuckAfter time.Duration
}

// NewStaleGenerationJob fails documents that never reached a terminal status
// and settles their projects so they can be regenerated.
func NewStaleGenerationJob(params StaleGenerationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Documents == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Projects == nil {
		return nil, fmt.Errorf("project repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	stuckAfter := params.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = defaultStuckAfter
	}
	return &staleGenerationJob{
		logg:       params.Logger,
		db:         params.DB,
		docs:       params.Documents,
		projects:   params.Projects,
		outbox:     params.Outbox,
		stuckAfter: stuckAfter,
		now:        time.Now,
	}, nil
}

type staleGenerationJob struct {
	logg       *logger.Logger
	db         txRunner
	docs       stuckDocumentStore
	projects   projects.Repository
	outbox     outbox.Emitter
	stuckAfter time.Duration
	now        func() time.Time
}

func (j *staleGenerationJob) Name() string { return "stale-generation" }

func (j *staleGenerationJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.stuckAfter)
	stuck, err := j.docs.ListStuck(ctx, cutoff, staleBatchSize)
	if err != nil {
		return fmt.Errorf("list stuck documents: %w", err)
	}

	failed := 0
	var (
		errs       error
		touched    = map[uuid.UUID]struct{}{}
		projectIDs []uuid.UUID
	)
	message := staleTimeoutMessage
	for _, doc := range stuck {
		_, err := j.docs.SetStatus(ctx, doc.ID, documents.StatusUpdate{
			Status:       enums.DocumentStatusError,
			ErrorMessage: &message,
		})
		if err != nil {
			// settled or deleted since the listing
			if errors.Is(err, documents.ErrInvalidTransition) || errors.Is(err, documents.ErrNotFound) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("fail document %s: %w", doc.ID, err))
			continue
		}
		if _, ok := touched[doc.ProjectID]; !ok {
			touched[doc.ProjectID] = struct{}{}
			projectIDs = append(projectIDs, doc.ProjectID)
		}
		failed++
	}

	for _, projectID := range projectIDs {
		if err := generation.Finalize(ctx, j.db, j.projects, j.docs, j.outbox, projectID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("finalize project %s: %w", projectID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":             cutoff,
		"documents_stuck":    len(stuck),
		"documents_failed":   failed,
		"projects_finalized": len(projectIDs),
	})
	j.logg.Info(logCtx, "stale generation sweep complete")
	return errs
}
