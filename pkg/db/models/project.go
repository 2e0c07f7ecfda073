package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/draftforge-backend/pkg/db/types"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
)

// Project is the aggregate that owns a set of generated documents.
type Project struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID uuid.UUID           `gorm:"column:account_id;type:uuid;not null"`
	Idea      string              `gorm:"column:idea;not null;default:''"`
	Details   dbtypes.StringMap   `gorm:"column:details;type:jsonb;not null"`
	Tools     dbtypes.StringList  `gorm:"column:tools;type:jsonb;not null"`
	Plan      string              `gorm:"column:plan;not null;default:''"`
	Status    enums.ProjectStatus `gorm:"column:status;type:project_status_enum;not null;default:'draft'"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = enums.ProjectStatusDraft
	}
	return nil
}
