package ledger

import (
	"context"
	"errors"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages account balances and the append-only usage log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	DecrementIfSufficient(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error)
	Increment(ctx context.Context, accountID uuid.UUID, amount int64) error
	CreateUsage(ctx context.Context, usage *models.CreditUsage) error
	ListUsage(ctx context.Context, accountID uuid.UUID, limit int) ([]models.CreditUsage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// DecrementIfSufficient subtracts amount in one conditional UPDATE. It reports
// false, without touching the row, when the balance cannot cover amount.
func (r *repository) DecrementIfSufficient(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND credit_balance >= ?", accountID, amount).
		Update("credit_balance", gorm.Expr("credit_balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, accountID uuid.UUID, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("credit_balance", gorm.Expr("credit_balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.CreditUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) ListUsage(ctx context.Context, accountID uuid.UUID, limit int) ([]models.CreditUsage, error) {
	var rows []models.CreditUsage
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
