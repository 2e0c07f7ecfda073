package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/draftforge-backend/internal/ledger"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const grantReason = "admin grant"

type accountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	UpdateProjectLimit(ctx context.Context, id uuid.UUID, limit int) error
}

type creditor interface {
	Refund(ctx context.Context, input ledger.RefundInput) error
}

// Service provisions accounts and applies subscription-side changes.
type Service interface {
	GetOrCreate(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	SetProjectLimit(ctx context.Context, accountID uuid.UUID, limit int) (*models.Account, error)
	GrantCredits(ctx context.Context, accountID uuid.UUID, amount int64) (*models.Account, error)
}

type service struct {
	repo    accountRepository
	credits creditor
	cfg     config.CreditsConfig
	logg    *logger.Logger
}

func NewService(repo accountRepository, credits creditor, cfg config.CreditsConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("account repository required")
	}
	if credits == nil {
		return nil, fmt.Errorf("credit ledger required")
	}
	return &service{repo: repo, credits: credits, cfg: cfg, logg: logg}, nil
}

// GetOrCreate returns the account, provisioning it with the starting balance
// on first use.
func (s *service) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account != nil {
		return account, nil
	}

	account = &models.Account{
		ID:            accountID,
		CreditBalance: s.cfg.StartingBalance,
		ProjectLimit:  s.cfg.DefaultProjectLimit,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if !db.IsUniqueViolation(err, "accounts_pkey") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
		}
		// another request provisioned it first
		existing, findErr := s.repo.FindByID(ctx, accountID)
		if findErr != nil || existing == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.Join(err, findErr), "load account")
		}
		return existing, nil
	}

	logCtx := s.logg.WithAccountID(ctx, accountID.String())
	s.logg.Info(logCtx, "account provisioned")
	return account, nil
}

func (s *service) SetProjectLimit(ctx context.Context, accountID uuid.UUID, limit int) (*models.Account, error) {
	if limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project limit must not be negative")
	}
	if err := s.repo.UpdateProjectLimit(ctx, accountID, limit); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update project limit")
	}
	return s.load(ctx, accountID)
}

// GrantCredits tops up a balance through the ledger so the change is published
// like any other refund.
func (s *service) GrantCredits(ctx context.Context, accountID uuid.UUID, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if err := s.credits.Refund(ctx, ledger.RefundInput{AccountID: accountID, Credits: amount, Reason: grantReason}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, err
	}
	return s.load(ctx, accountID)
}

func (s *service) load(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return account, nil
}
