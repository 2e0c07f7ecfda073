package projects

import (
	"sort"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
)

// DetailAnswer is one structured wizard answer.
type DetailAnswer struct {
	Field  string
	Answer string
}

// GenerationContext is everything a prompt template may read from a project.
type GenerationContext struct {
	Idea    string
	Details []DetailAnswer
	Tools   []string
	Plan    string
}

// HasPlan reports whether a plan has been generated for the project.
func (c GenerationContext) HasPlan() bool {
	return c.Plan != ""
}

// ContextOf snapshots the project fields used for generation. Details are
// sorted by field name so prompts are deterministic.
func ContextOf(p *models.Project) GenerationContext {
	if p == nil {
		return GenerationContext{}
	}
	details := make([]DetailAnswer, 0, len(p.Details))
	for field, answer := range p.Details {
		if answer == "" {
			continue
		}
		details = append(details, DetailAnswer{Field: field, Answer: answer})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Field < details[j].Field })

	tools := make([]string, len(p.Tools))
	copy(tools, p.Tools)

	return GenerationContext{
		Idea:    p.Idea,
		Details: details,
		Tools:   tools,
		Plan:    p.Plan,
	}
}
