package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/internal/ledger"
	"github.com/angelmondragon/draftforge-backend/internal/llm"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
)

const maxQuestionLength = 2000

// Service runs the single-shot assist actions. Each one charges before the
// completion call and keeps the charge when the call fails.
type Service interface {
	RefineIdea(ctx context.Context, accountID, projectID uuid.UUID) (*projects.ProjectDTO, error)
	GeneratePlan(ctx context.Context, accountID, projectID uuid.UUID) (*projects.ProjectDTO, error)
	Answer(ctx context.Context, accountID, projectID uuid.UUID, question string) (*AnswerDTO, error)
}

type AnswerDTO struct {
	ProjectID uuid.UUID `json:"project_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Credits   int64     `json:"credits_charged"`
}

type charger interface {
	Charge(ctx context.Context, input ledger.RecordUsageInput) (*models.CreditUsage, error)
}

type ServiceParams struct {
	Projects projects.Repository
	Ledger   charger
	Client   llm.Client
	Credits  config.CreditsConfig
	Timeout  time.Duration
	Logger   *logger.Logger
}

type service struct {
	projects projects.Repository
	ledger   charger
	client   llm.Client
	credits  config.CreditsConfig
	timeout  time.Duration
	logg     *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Projects == nil {
		return nil, fmt.Errorf("project repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if p.Client == nil {
		return nil, fmt.Errorf("completion client required")
	}
	return &service{
		projects: p.Projects,
		ledger:   p.Ledger,
		client:   p.Client,
		credits:  p.Credits,
		timeout:  p.Timeout,
		logg:     p.Logger,
	}, nil
}

func (s *service) RefineIdea(ctx context.Context, accountID, projectID uuid.UUID) (*projects.ProjectDTO, error) {
	project, err := s.loadEditable(ctx, accountID, projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(project.Idea) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project idea is required before it can be refined")
	}

	text, err := s.run(ctx, project, "refine", promptData{Ctx: projects.ContextOf(project)}, enums.CreditActionIdeaRefinement, s.credits.IdeaRefinementCost)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, project, "idea", text)
}

func (s *service) GeneratePlan(ctx context.Context, accountID, projectID uuid.UUID) (*projects.ProjectDTO, error) {
	project, err := s.loadEditable(ctx, accountID, projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(project.Idea) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project idea is required before planning")
	}

	text, err := s.run(ctx, project, "plan", promptData{Ctx: projects.ContextOf(project)}, enums.CreditActionPlanGeneration, s.credits.PlanGenerationCost)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, project, "plan", text)
}

func (s *service) Answer(ctx context.Context, accountID, projectID uuid.UUID, question string) (*AnswerDTO, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "question is required")
	}
	if len(question) > maxQuestionLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("question must be at most %d characters", maxQuestionLength))
	}
	project, err := projects.LoadOwned(ctx, s.projects, accountID, projectID)
	if err != nil {
		return nil, err
	}

	data := promptData{Ctx: projects.ContextOf(project), Question: question}
	text, err := s.run(ctx, project, "answer", data, enums.CreditActionAIAnswer, s.credits.AIAnswerCost)
	if err != nil {
		return nil, err
	}
	return &AnswerDTO{
		ProjectID: project.ID,
		Question:  question,
		Answer:    text,
		Credits:   s.credits.AIAnswerCost,
	}, nil
}

func (s *service) loadEditable(ctx context.Context, accountID, projectID uuid.UUID) (*models.Project, error) {
	project, err := projects.LoadOwned(ctx, s.projects, accountID, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status == enums.ProjectStatusGeneratingDocs {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "project is generating documents")
	}
	return project, nil
}

func (s *service) run(ctx context.Context, project *models.Project, tmpl string, data promptData, action enums.CreditAction, cost int64) (string, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render prompt")
	}

	projectID := project.ID
	if _, err := s.ledger.Charge(ctx, ledger.RecordUsageInput{
		AccountID: project.AccountID,
		ProjectID: &projectID,
		Action:    action,
		Credits:   cost,
	}); err != nil {
		return "", err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	text, err := s.client.Complete(callCtx, prompt)
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = llm.ErrEmptyCompletion
		}
	}
	if err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"project_id": project.ID.String(),
			"action":     string(action),
		})
		s.logg.Error(ctx, "assist completion failed", err)
		msg := "completion failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("completion timed out after %s", s.timeout)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeGenerationFailed, err, msg)
	}
	return text, nil
}

func (s *service) store(ctx context.Context, project *models.Project, column, text string) (*projects.ProjectDTO, error) {
	if err := s.projects.UpdateFields(ctx, project.ID, map[string]any{column: text}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save "+column)
	}
	updated, err := s.projects.FindByID(ctx, project.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload project")
	}
	if updated == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return projects.FromModel(updated), nil
}
