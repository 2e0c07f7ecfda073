package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/pkg/enums"
)

// CreditUsage is an append-only record of a charge against an account.
type CreditUsage struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID  uuid.UUID          `gorm:"column:account_id;type:uuid;not null"`
	ProjectID  *uuid.UUID         `gorm:"column:project_id;type:uuid"`
	DocumentID *uuid.UUID         `gorm:"column:document_id;type:uuid"`
	Action     enums.CreditAction `gorm:"column:action;type:credit_action_enum;not null"`
	Credits    int64              `gorm:"column:credits;not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (CreditUsage) TableName() string {
	return "credit_usage"
}

func (u *CreditUsage) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
