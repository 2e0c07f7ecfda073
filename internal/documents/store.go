package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/draftforge-backend/pkg/db"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/retry"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidTransition = errors.New("invalid document status transition")
	ErrInFlight          = errors.New("document is being generated")
)

const defaultErrorMessage = "generation failed"

// StatusUpdate moves a document to Status. Content is written on completion and
// ErrorMessage on failure.
type StatusUpdate struct {
	Status       enums.DocumentStatus
	Content      *string
	ErrorMessage *string
}

// Store is the document record store. Every write runs under the retry policy
// supplied at construction; reads are attempted once.
type Store struct {
	repo   Repository
	policy retry.Policy
	logg   *logger.Logger
}

func NewStore(repo Repository, policy retry.Policy, logg *logger.Logger) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("document repository required")
	}
	if policy.Retryable == nil {
		policy.Retryable = db.IsRetryable
	}
	return &Store{repo: repo, policy: policy, logg: logg}, nil
}

// CreatePlaceholder inserts a pending record for (projectID, docType). When a
// live record already exists it is returned unchanged instead of duplicated.
func (s *Store) CreatePlaceholder(ctx context.Context, projectID uuid.UUID, docType enums.DocumentType, title string) (*models.Document, error) {
	if projectID == uuid.Nil {
		return nil, errors.New("project id is required")
	}
	if !docType.IsValid() {
		return nil, fmt.Errorf("invalid document type %q", docType)
	}
	if strings.TrimSpace(title) == "" {
		title = docType.Title()
	}

	var doc *models.Document
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		candidate := &models.Document{
			ProjectID: projectID,
			Type:      docType,
			Title:     title,
			Status:    enums.DocumentStatusPending,
		}
		err := s.repo.Create(ctx, candidate)
		if err == nil {
			doc = candidate
			return nil
		}
		if !db.IsUniqueViolation(err, "ux_documents_project_type") {
			return err
		}
		existing, findErr := s.repo.FindByProjectAndType(ctx, projectID, docType)
		if findErr != nil {
			return findErr
		}
		if existing == nil {
			return err
		}
		doc = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SetStatus applies update only when the current status may move to
// update.Status. It returns ErrInvalidTransition when it may not.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*models.Document, error) {
	fields, err := statusFields(update)
	if err != nil {
		return nil, err
	}
	from := update.Status.AllowedFrom()

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Transition(ctx, id, from, fields)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, update.Status)
	})
	if err != nil {
		return nil, err
	}

	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func statusFields(update StatusUpdate) (map[string]any, error) {
	fields := map[string]any{"status": update.Status}
	switch update.Status {
	case enums.DocumentStatusPending:
	case enums.DocumentStatusGenerating:
		fields["error_message"] = nil
	case enums.DocumentStatusCompleted:
		if update.Content == nil {
			return nil, errors.New("content is required to complete a document")
		}
		fields["content"] = *update.Content
		fields["error_message"] = nil
	case enums.DocumentStatusError:
		msg := defaultErrorMessage
		if update.ErrorMessage != nil && strings.TrimSpace(*update.ErrorMessage) != "" {
			msg = strings.TrimSpace(*update.ErrorMessage)
		}
		fields["error_message"] = msg
	default:
		return nil, fmt.Errorf("invalid document status %q", update.Status)
	}
	return fields, nil
}

func (s *Store) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Document, error) {
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Store) DeleteByProjectAndType(ctx context.Context, projectID uuid.UUID, docType enums.DocumentType) error {
	return s.policy.Do(ctx, func(ctx context.Context) error {
		_, err := s.repo.DeleteByProjectAndType(ctx, projectID, docType)
		return err
	})
}

// Delete removes a settled document. A pending or generating record is owned
// by a generation attempt and yields ErrInFlight.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted int64
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		n, err := s.repo.DeleteInStatus(ctx, id, []enums.DocumentStatus{enums.DocumentStatusCompleted, enums.DocumentStatusError})
		deleted = n
		return err
	})
	if err != nil {
		return err
	}
	if deleted > 0 {
		return nil
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s", ErrInFlight, current.Status)
}

// ListStuck returns in-flight documents not updated since before.
func (s *Store) ListStuck(ctx context.Context, before time.Time, limit int) ([]models.Document, error) {
	return s.repo.ListStuck(ctx, before, limit)
}
