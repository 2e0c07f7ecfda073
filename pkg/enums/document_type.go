package enums

import "fmt"

// DocumentType maps to the document_type enum in Postgres. The set is closed:
// every generation handler is keyed by one of these values.
type DocumentType string

const (
	DocumentTypePRD          DocumentType = "prd"
	DocumentTypeUserFlow     DocumentType = "user_flow"
	DocumentTypeArchitecture DocumentType = "architecture"
	DocumentTypeSchema       DocumentType = "schema"
	DocumentTypeAPISpec      DocumentType = "api_spec"
)

var validDocumentTypes = []DocumentType{
	DocumentTypePRD,
	DocumentTypeUserFlow,
	DocumentTypeArchitecture,
	DocumentTypeSchema,
	DocumentTypeAPISpec,
}

var documentTitles = map[DocumentType]string{
	DocumentTypePRD:          "Product Requirements Document",
	DocumentTypeUserFlow:     "User Flow",
	DocumentTypeArchitecture: "System Architecture",
	DocumentTypeSchema:       "Database Schema",
	DocumentTypeAPISpec:      "API Specification",
}

// AllDocumentTypes returns the canonical ordering of document types.
func AllDocumentTypes() []DocumentType {
	out := make([]DocumentType, len(validDocumentTypes))
	copy(out, validDocumentTypes)
	return out
}

// IsValid reports whether the value matches the canonical document_type enum.
func (t DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Title is the human readable heading stored on the document row.
func (t DocumentType) Title() string {
	return documentTitles[t]
}

func (t DocumentType) String() string {
	return string(t)
}

// ParseDocumentType converts raw input into DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
