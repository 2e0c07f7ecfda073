package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/pkg/enums"
)

// Document is the single live record for one (project, type) pair.
// Regeneration overwrites it in place.
type Document struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID    uuid.UUID            `gorm:"column:project_id;type:uuid;not null"`
	Type         enums.DocumentType   `gorm:"column:type;type:document_type_enum;not null"`
	Title        string               `gorm:"column:title;not null"`
	Content      string               `gorm:"column:content;not null;default:''"`
	Status       enums.DocumentStatus `gorm:"column:status;type:document_status_enum;not null;default:'pending'"`
	ErrorMessage *string              `gorm:"column:error_message"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
