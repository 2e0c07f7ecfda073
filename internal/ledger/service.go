package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/metrics"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox/payloads"
)

// Service is the credit ledger. Balances only move through Reserve, Refund and
// Charge; Record appends to the usage log.
type Service interface {
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
	Reserve(ctx context.Context, accountID uuid.UUID, amount int64) error
	Record(ctx context.Context, input RecordUsageInput) (*models.CreditUsage, error)
	Refund(ctx context.Context, input RefundInput) error
	Charge(ctx context.Context, input RecordUsageInput) (*models.CreditUsage, error)
	ListUsage(ctx context.Context, accountID uuid.UUID, limit int) ([]models.CreditUsage, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RecordUsageInput describes one usage entry. Credits is the amount already
// reserved (Record) or about to be reserved (Charge).
type RecordUsageInput struct {
	AccountID  uuid.UUID
	ProjectID  *uuid.UUID
	DocumentID *uuid.UUID
	Action     enums.CreditAction
	Credits    int64
}

type RefundInput struct {
	AccountID uuid.UUID
	Credits   int64
	Reason    string
}

type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Outbox     outbox.Emitter
	Logger     *logger.Logger
	Metrics    *metrics.GenerationMetrics
}

type service struct {
	repo    Repository
	db      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.GenerationMetrics
}

// NewService wires the ledger with its repository and transaction runner.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    params.Repository,
		db:      params.DB,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	account, err := s.repo.FindAccount(ctx, accountID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return account.CreditBalance, nil
}

// Reserve atomically deducts amount. It fails with INSUFFICIENT_CREDITS and no
// side effects when the balance cannot cover it.
func (s *service) Reserve(ctx context.Context, accountID uuid.UUID, amount int64) error {
	return s.reserve(ctx, s.repo, accountID, amount)
}

func (s *service) reserve(ctx context.Context, repo Repository, accountID uuid.UUID, amount int64) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve amount must be positive")
	}
	ok, err := repo.DecrementIfSufficient(ctx, accountID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve credits")
	}
	if ok {
		return nil
	}
	account, err := repo.FindAccount(ctx, accountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
	}
	if account == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient credits").WithDetails(map[string]any{
		"required": amount,
		"balance":  account.CreditBalance,
	})
}

func (s *service) Record(ctx context.Context, input RecordUsageInput) (*models.CreditUsage, error) {
	if err := validateUsage(input); err != nil {
		return nil, err
	}
	var usage *models.CreditUsage
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.record(ctx, tx, s.repo.WithTx(tx), input)
		usage = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// Charge reserves and records in one transaction, for actions billed as a
// single unit.
func (s *service) Charge(ctx context.Context, input RecordUsageInput) (*models.CreditUsage, error) {
	if err := validateUsage(input); err != nil {
		return nil, err
	}
	var usage *models.CreditUsage
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.reserve(ctx, repo, input.AccountID, input.Credits); err != nil {
			return err
		}
		created, err := s.record(ctx, tx, repo, input)
		usage = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, repo Repository, input RecordUsageInput) (*models.CreditUsage, error) {
	usage := &models.CreditUsage{
		AccountID:  input.AccountID,
		ProjectID:  input.ProjectID,
		DocumentID: input.DocumentID,
		Action:     input.Action,
		Credits:    input.Credits,
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record credit usage")
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditsCharged,
		AggregateType: enums.AggregateAccount,
		AggregateID:   input.AccountID,
		Actor:         &outbox.ActorRef{AccountID: input.AccountID},
		Data: payloads.CreditsChargedEvent{
			AccountID:  input.AccountID,
			ProjectID:  input.ProjectID,
			DocumentID: input.DocumentID,
			Action:     input.Action,
			Credits:    input.Credits,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit credits charged")
	}
	s.metrics.AddCharged(string(input.Action), input.Credits)
	return usage, nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) error {
	if input.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Credits <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Increment(ctx, input.AccountID, input.Credits); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refund credits")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCreditsRefunded,
			AggregateType: enums.AggregateAccount,
			AggregateID:   input.AccountID,
			Data: payloads.CreditsRefundedEvent{
				AccountID: input.AccountID,
				Credits:   input.Credits,
				Reason:    input.Reason,
			},
		})
	})
	if err != nil {
		return err
	}
	s.metrics.AddRefunded(input.Credits)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"account_id": input.AccountID.String(),
		"credits":    input.Credits,
		"reason":     input.Reason,
	})
	s.logg.Info(logCtx, "credits refunded")
	return nil
}

func (s *service) ListUsage(ctx context.Context, accountID uuid.UUID, limit int) ([]models.CreditUsage, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	rows, err := s.repo.ListUsage(ctx, accountID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list credit usage")
	}
	return rows, nil
}

func validateUsage(input RecordUsageInput) error {
	if input.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !input.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit action %q", input.Action))
	}
	if input.Action.RequiresProject() && (input.ProjectID == nil || *input.ProjectID == uuid.Nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "project id is required for "+string(input.Action))
	}
	if input.Credits <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credits must be positive")
	}
	return nil
}
