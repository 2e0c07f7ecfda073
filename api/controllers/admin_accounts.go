package controllers

import (
	"net/http"

	"github.com/angelmondragon/draftforge-backend/api/responses"
	"github.com/angelmondragon/draftforge-backend/api/validators"
	"github.com/angelmondragon/draftforge-backend/internal/accounts"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
)

type grantCreditsRequest struct {
	Credits int64 `json:"credits" validate:"required,gt=0,max=1000000"`
}

type projectLimitRequest struct {
	Limit *int `json:"limit" validate:"required,min=0,max=1000"`
}

// AdminGrantCredits tops up an account balance.
func AdminGrantCredits(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := uuidParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body grantCreditsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.GrantCredits(r.Context(), accountID, body.Credits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accounts.FromModel(account))
	}
}

// AdminSetProjectLimit applies a subscription change to an account.
func AdminSetProjectLimit(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := uuidParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body projectLimitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.SetProjectLimit(r.Context(), accountID, *body.Limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accounts.FromModel(account))
	}
}
