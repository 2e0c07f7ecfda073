package generation

import (
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/google/uuid"
)

// SubmitInput names a project and the document types to produce for it.
type SubmitInput struct {
	AccountID     uuid.UUID
	ProjectID     uuid.UUID
	DocumentTypes []string
}

// SubmissionResult is the definite outcome of a submission. Failures are
// reported here, never as a Go error.
type SubmissionResult struct {
	Success       bool              `json:"success"`
	DocumentCount int               `json:"documentCount,omitempty"`
	Error         string            `json:"error,omitempty"`
	Code          pkgerrors.Code    `json:"code,omitempty"`
	Details       any               `json:"details,omitempty"`
	Charged       int64             `json:"charged"`
	Documents     []DocumentOutcome `json:"documents,omitempty"`
}

// DocumentOutcome reports where one requested type ended up. ID is nil when
// no record could be created.
type DocumentOutcome struct {
	ID      *uuid.UUID           `json:"id,omitempty"`
	Type    enums.DocumentType   `json:"type"`
	Status  enums.DocumentStatus `json:"status"`
	Charged bool                 `json:"charged"`
	Error   string               `json:"error,omitempty"`
}

func failure(err error) SubmissionResult {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generation failed")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	result := SubmissionResult{Code: typed.Code(), Error: typed.Message()}
	if typed.Code() == pkgerrors.CodeInternal {
		result.Error = meta.PublicMessage
	}
	if meta.DetailsAllowed {
		result.Details = typed.Details()
	}
	return result
}
