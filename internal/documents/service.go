package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/google/uuid"
)

// Service is the account-scoped read and delete path for documents.
type Service interface {
	List(ctx context.Context, accountID, projectID uuid.UUID) ([]models.Document, error)
	Get(ctx context.Context, accountID, documentID uuid.UUID) (*models.Document, error)
	Delete(ctx context.Context, accountID, documentID uuid.UUID) error
}

type service struct {
	store    *Store
	projects projects.Repository
}

func NewService(store *Store, projectRepo projects.Repository) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if projectRepo == nil {
		return nil, fmt.Errorf("project repository required")
	}
	return &service{store: store, projects: projectRepo}, nil
}

func (s *service) List(ctx context.Context, accountID, projectID uuid.UUID) ([]models.Document, error) {
	if _, err := projects.LoadOwned(ctx, s.projects, accountID, projectID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListByProject(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list documents")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, accountID, documentID uuid.UUID) (*models.Document, error) {
	doc, err := s.store.FindByID(ctx, documentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load document")
	}
	if doc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	if _, err := projects.LoadOwned(ctx, s.projects, accountID, doc.ProjectID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, err
	}
	return doc, nil
}

func (s *service) Delete(ctx context.Context, accountID, documentID uuid.UUID) error {
	doc, err := s.Get(ctx, accountID, documentID)
	if err != nil {
		return err
	}
	if doc.Status.InFlight() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "document is being generated")
	}
	err = s.store.Delete(ctx, documentID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	case errors.Is(err, ErrInFlight):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "document is being generated")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete document")
	}
}
