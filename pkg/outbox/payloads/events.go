package payloads

import (
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/google/uuid"
)

// CreditsChargedEvent is emitted whenever a usage entry is recorded.
type CreditsChargedEvent struct {
	AccountID  uuid.UUID          `json:"account_id"`
	ProjectID  *uuid.UUID         `json:"project_id,omitempty"`
	DocumentID *uuid.UUID         `json:"document_id,omitempty"`
	Action     enums.CreditAction `json:"action"`
	Credits    int64              `json:"credits"`
}

// CreditsRefundedEvent is emitted when a reservation is returned to the balance.
type CreditsRefundedEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	Credits   int64     `json:"credits"`
	Reason    string    `json:"reason"`
}

// GenerationSubmittedEvent marks the start of a document batch.
type GenerationSubmittedEvent struct {
	ProjectID     uuid.UUID            `json:"project_id"`
	AccountID     uuid.UUID            `json:"account_id"`
	DocumentTypes []enums.DocumentType `json:"document_types"`
	Charged       int64                `json:"charged"`
}

// GenerationCompletedEvent reports the terminal state of a project's documents.
type GenerationCompletedEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
}
