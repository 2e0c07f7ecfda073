package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the billing principal. Its id is the subject of the access token.
type Account struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CreditBalance int64     `gorm:"column:credit_balance;not null;default:0"`
	ProjectLimit  int       `gorm:"column:project_limit;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
