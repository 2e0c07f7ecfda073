package enums

import "fmt"

// DocumentStatus maps to the document_status enum in Postgres.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusGenerating DocumentStatus = "generating"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusError      DocumentStatus = "error"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusPending,
	DocumentStatusGenerating,
	DocumentStatusCompleted,
	DocumentStatusError,
}

// IsValid reports whether the value matches the canonical document_status enum.
func (s DocumentStatus) IsValid() bool {
	for _, candidate := range validDocumentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further work is scheduled for the document.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusError
}

// InFlight reports whether a generation attempt owns the document.
func (s DocumentStatus) InFlight() bool {
	return s == DocumentStatusPending || s == DocumentStatusGenerating
}

// AllowedFrom lists the statuses a record may hold immediately before moving
// to s. Content only lands on a generating record. A pending record may still
// fail outright when the sweeper times it out. Terminal records re-enter the
// lifecycle through generating.
func (s DocumentStatus) AllowedFrom() []DocumentStatus {
	switch s {
	case DocumentStatusPending:
		return []DocumentStatus{DocumentStatusPending}
	case DocumentStatusGenerating:
		return []DocumentStatus{DocumentStatusPending, DocumentStatusGenerating, DocumentStatusCompleted, DocumentStatusError}
	case DocumentStatusCompleted:
		return []DocumentStatus{DocumentStatusGenerating}
	case DocumentStatusError:
		return []DocumentStatus{DocumentStatusPending, DocumentStatusGenerating}
	default:
		return nil
	}
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, from := range next.AllowedFrom() {
		if from == s {
			return true
		}
	}
	return false
}

func (s DocumentStatus) String() string {
	return string(s)
}

// ParseDocumentStatus converts raw input into DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	for _, candidate := range validDocumentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document status %q", value)
}
