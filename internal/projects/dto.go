package projects

import (
	"time"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/google/uuid"
)

// ProjectDTO is the API view of a project.
type ProjectDTO struct {
	ID        uuid.UUID           `json:"id"`
	AccountID uuid.UUID           `json:"account_id"`
	Idea      string              `json:"idea"`
	Details   map[string]string   `json:"details"`
	Tools     []string            `json:"tools"`
	Plan      string              `json:"plan,omitempty"`
	Status    enums.ProjectStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// WizardInput carries the wizard fields a user may change. Nil fields are left alone.
type WizardInput struct {
	Idea    *string
	Details map[string]string
	Tools   []string
}

func FromModel(m *models.Project) *ProjectDTO {
	if m == nil {
		return nil
	}
	details := make(map[string]string, len(m.Details))
	for k, v := range m.Details {
		details[k] = v
	}
	tools := make([]string, len(m.Tools))
	copy(tools, m.Tools)
	return &ProjectDTO{
		ID:        m.ID,
		AccountID: m.AccountID,
		Idea:      m.Idea,
		Details:   details,
		Tools:     tools,
		Plan:      m.Plan,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
