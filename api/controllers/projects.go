package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/api/responses"
	"github.com/angelmondragon/draftforge-backend/api/validators"
	"github.com/angelmondragon/draftforge-backend/internal/admission"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
)

type projectAdmitter interface {
	Admit(ctx context.Context, accountID uuid.UUID) (*admission.Admission, error)
}

// CreateProject admits a new draft project or hands back the caller's recent draft.
func CreateProject(ctrl projectAdmitter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctrl == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admission unavailable"))
			return
		}
		accountID, err := accountFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := ctrl.Admit(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Reused {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"project": projects.FromModel(result.Project),
			"reused":  result.Reused,
		})
	}
}

func ListProjects(svc projects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*projects.ProjectDTO, 0, len(rows))
		for i := range rows {
			out = append(out, projects.FromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func GetProject(svc projects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := uuidParam(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		project, err := svc.Get(r.Context(), accountID, projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projects.FromModel(project))
	}
}

type updateProjectRequest struct {
	Idea    *string           `json:"idea" validate:"omitempty,max=4000"`
	Details map[string]string `json:"details" validate:"omitempty,max=20"`
	Tools   []string          `json:"tools" validate:"omitempty,max=30,dive,max=64"`
}

// UpdateProject applies wizard answers to a project that is not generating.
func UpdateProject(svc projects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := uuidParam(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProjectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if body.Idea != nil {
			idea := validators.SanitizeString(*body.Idea, 4000)
			body.Idea = &idea
		}
		project, err := svc.UpdateWizard(r.Context(), accountID, projectID, projects.WizardInput{
			Idea:    body.Idea,
			Details: body.Details,
			Tools:   validators.SanitizeList(body.Tools, 64),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projects.FromModel(project))
	}
}

func DeleteProject(svc projects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := uuidParam(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), accountID, projectID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}
