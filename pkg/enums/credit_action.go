package enums

import "fmt"

// CreditAction maps to the credit_action enum in Postgres.
type CreditAction string

const (
	CreditActionDocumentGeneration   CreditAction = "document_generation"
	CreditActionDocumentRegeneration CreditAction = "document_regeneration"
	CreditActionPlanGeneration       CreditAction = "plan_generation"
	CreditActionIdeaRefinement       CreditAction = "idea_refinement"
	CreditActionAIAnswer             CreditAction = "ai_answer"
)

var validCreditActions = []CreditAction{
	CreditActionDocumentGeneration,
	CreditActionDocumentRegeneration,
	CreditActionPlanGeneration,
	CreditActionIdeaRefinement,
	CreditActionAIAnswer,
}

// IsValid reports whether the value matches the canonical credit_action enum.
func (a CreditAction) IsValid() bool {
	for _, candidate := range validCreditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// RequiresProject reports whether usage entries for the action must reference a project.
func (a CreditAction) RequiresProject() bool {
	return a != CreditActionAIAnswer
}

// ParseCreditAction converts raw input into CreditAction.
func ParseCreditAction(value string) (CreditAction, error) {
	for _, candidate := range validCreditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit action %q", value)
}
