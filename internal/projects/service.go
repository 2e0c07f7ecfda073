package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/draftforge-backend/pkg/db/types"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxIdeaLength   = 10000
	maxToolCount    = 50
	maxDetailFields = 50
)

// Service exposes the read and wizard paths for projects. Creation goes
// through admission.
type Service interface {
	Get(ctx context.Context, accountID, projectID uuid.UUID) (*models.Project, error)
	List(ctx context.Context, accountID uuid.UUID) ([]models.Project, error)
	UpdateWizard(ctx context.Context, accountID, projectID uuid.UUID, input WizardInput) (*models.Project, error)
	Delete(ctx context.Context, accountID, projectID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("project repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, accountID, projectID uuid.UUID) (*models.Project, error) {
	return LoadOwned(ctx, s.repo, accountID, projectID)
}

func (s *service) List(ctx context.Context, accountID uuid.UUID) ([]models.Project, error) {
	rows, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list projects")
	}
	return rows, nil
}

func (s *service) UpdateWizard(ctx context.Context, accountID, projectID uuid.UUID, input WizardInput) (*models.Project, error) {
	project, err := LoadOwned(ctx, s.repo, accountID, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status == enums.ProjectStatusGeneratingDocs {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "project is generating documents")
	}

	fields := map[string]any{}
	if input.Idea != nil {
		idea := strings.TrimSpace(*input.Idea)
		if len(idea) > maxIdeaLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("idea must be at most %d characters", maxIdeaLength))
		}
		fields["idea"] = idea
	}
	if input.Details != nil {
		if len(input.Details) > maxDetailFields {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many detail fields")
		}
		details := dbtypes.StringMap{}
		for k, v := range input.Details {
			key := strings.TrimSpace(k)
			if key == "" {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "detail field names must not be empty")
			}
			details[key] = strings.TrimSpace(v)
		}
		fields["details"] = details
	}
	if input.Tools != nil {
		if len(input.Tools) > maxToolCount {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many tools")
		}
		fields["tools"] = normalizeTools(input.Tools)
	}
	if len(fields) == 0 {
		return project, nil
	}

	if err := s.repo.UpdateFields(ctx, projectID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update project")
	}
	return LoadOwned(ctx, s.repo, accountID, projectID)
}

func (s *service) Delete(ctx context.Context, accountID, projectID uuid.UUID) error {
	project, err := LoadOwned(ctx, s.repo, accountID, projectID)
	if err != nil {
		return err
	}
	if project.Status == enums.ProjectStatusGeneratingDocs {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "project is generating documents")
	}
	if err := s.repo.Delete(ctx, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete project")
	}
	return nil
}

// LoadOwned fetches a project and hides it from every account but its owner.
func LoadOwned(ctx context.Context, repo Repository, accountID, projectID uuid.UUID) (*models.Project, error) {
	if projectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project id is required")
	}
	project, err := repo.FindByID(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project")
	}
	if project == nil || project.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return project, nil
}

func normalizeTools(tools []string) dbtypes.StringList {
	seen := make(map[string]struct{}, len(tools))
	out := make(dbtypes.StringList, 0, len(tools))
	for _, tool := range tools {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		key := strings.ToLower(tool)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tool)
	}
	return out
}
