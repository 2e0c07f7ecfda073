package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
)

type BalanceDTO struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"`
}

type UsageDTO struct {
	ID         uuid.UUID          `json:"id"`
	ProjectID  *uuid.UUID         `json:"project_id,omitempty"`
	DocumentID *uuid.UUID         `json:"document_id,omitempty"`
	Action     enums.CreditAction `json:"action"`
	Credits    int64              `json:"credits"`
	CreatedAt  time.Time          `json:"created_at"`
}

func UsageFromModels(rows []models.CreditUsage) []UsageDTO {
	out := make([]UsageDTO, 0, len(rows))
	for _, m := range rows {
		out = append(out, UsageDTO{
			ID:         m.ID,
			ProjectID:  m.ProjectID,
			DocumentID: m.DocumentID,
			Action:     m.Action,
			Credits:    m.Credits,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out
}
