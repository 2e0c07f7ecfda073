package accounts

import (
	"time"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/google/uuid"
)

type AccountDTO struct {
	ID            uuid.UUID `json:"id"`
	CreditBalance int64     `json:"credit_balance"`
	ProjectLimit  int       `json:"project_limit"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func FromModel(m *models.Account) *AccountDTO {
	if m == nil {
		return nil
	}
	return &AccountDTO{
		ID:            m.ID,
		CreditBalance: m.CreditBalance,
		ProjectLimit:  m.ProjectLimit,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
