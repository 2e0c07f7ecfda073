package documents

import (
	"time"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/google/uuid"
)

// DocumentDTO is the API view of a document record.
type DocumentDTO struct {
	ID           uuid.UUID            `json:"id"`
	ProjectID    uuid.UUID            `json:"project_id"`
	Type         enums.DocumentType   `json:"type"`
	Title        string               `json:"title"`
	Content      string               `json:"content"`
	HTML         string               `json:"html,omitempty"`
	Status       enums.DocumentStatus `json:"status"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// SummaryDTO omits content for list responses.
type SummaryDTO struct {
	ID           uuid.UUID            `json:"id"`
	Type         enums.DocumentType   `json:"type"`
	Title        string               `json:"title"`
	Status       enums.DocumentStatus `json:"status"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func FromModel(m *models.Document) *DocumentDTO {
	if m == nil {
		return nil
	}
	return &DocumentDTO{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		Type:         m.Type,
		Title:        m.Title,
		Content:      m.Content,
		Status:       m.Status,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func SummariesFromModels(rows []models.Document) []SummaryDTO {
	out := make([]SummaryDTO, 0, len(rows))
	for _, m := range rows {
		out = append(out, SummaryDTO{
			ID:           m.ID,
			Type:         m.Type,
			Title:        m.Title,
			Status:       m.Status,
			ErrorMessage: m.ErrorMessage,
			UpdatedAt:    m.UpdatedAt,
		})
	}
	return out
}
