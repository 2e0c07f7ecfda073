package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/api/responses"
	"github.com/angelmondragon/draftforge-backend/api/validators"
	"github.com/angelmondragon/draftforge-backend/internal/generation"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
)

type documentGenerator interface {
	Submit(ctx context.Context, input generation.SubmitInput) generation.SubmissionResult
	Regenerate(ctx context.Context, accountID, documentID uuid.UUID) generation.SubmissionResult
}

type generateDocumentsRequest struct {
	DocumentTypes []string `json:"document_types" validate:"required,min=1,max=10"`
}

// GenerateDocuments submits a batch of document types for a project. The body
// is always a submission result; the status code follows its error code.
func GenerateDocuments(orch documentGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation unavailable"))
			return
		}
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
		var body generateDocumentsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result := orch.Submit(r.Context(), generation.SubmitInput{
			AccountID:     accountID,
			ProjectID:     projectID,
			DocumentTypes: body.DocumentTypes,
		})
		writeSubmission(r.Context(), logg, w, result)
	}
}

func RegenerateDocument(orch documentGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation unavailable"))
			return
		}
		accountID, err := accountFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		documentID, err := uuidParam(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSubmission(r.Context(), logg, w, orch.Regenerate(r.Context(), accountID, documentID))
	}
}

func writeSubmission(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, result generation.SubmissionResult) {
	status := http.StatusOK
	if !result.Success {
		status = pkgerrors.MetadataFor(result.Code).HTTPStatus
		if logg != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{
				"error_code": string(result.Code),
				"error":      result.Error,
			}), "generation.rejected")
		}
	}
	responses.WriteResult(w, status, result)
}
