package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/api/responses"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
)

type AccountProvisioner interface {
	GetOrCreate(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

// EnsureAccount provisions the caller's account on first use so downstream
// handlers can rely on the row existing.
func EnsureAccount(provisioner AccountProvisioner, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			accountID, err := uuid.Parse(AccountIDFromContext(ctx))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
				return
			}
			if provisioner == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account provisioner unavailable"))
				return
			}
			if _, err := provisioner.GetOrCreate(ctx, accountID); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
