package generation

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/angelmondragon/draftforge-backend/internal/llm"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
)

// Handler owns everything type-specific about one document: its prompt and the
// shape its output must have.
type Handler interface {
	Type() enums.DocumentType
	Title() string
	Prompt(pctx projects.GenerationContext) (llm.Prompt, error)
	Validate(content string) error
}

const systemPrompt = "You are a senior product engineer writing concise, implementation-ready project documentation in GitHub-flavoured markdown. Answer with the document only."

const contextTemplate = `{{define "context"}}Product idea:
{{.Idea}}
{{if .Details}}
Details:
{{range .Details}}- {{.Field}}: {{.Answer}}
{{end}}{{end}}{{if .Tools}}
Tools and technologies: {{join .Tools ", "}}
{{end}}{{if .HasPlan}}
Project plan:
{{.Plan}}
{{end}}{{end}}`

var funcs = template.FuncMap{"join": strings.Join}

type templateHandler struct {
	docType     enums.DocumentType
	tmpl        *template.Template
	minSections int
}

func newTemplateHandler(docType enums.DocumentType, body string, minSections int) *templateHandler {
	tmpl := template.Must(template.New(string(docType)).Funcs(funcs).Parse(contextTemplate))
	template.Must(tmpl.Parse(body))
	return &templateHandler{docType: docType, tmpl: tmpl, minSections: minSections}
}

func (h *templateHandler) Type() enums.DocumentType { return h.docType }

func (h *templateHandler) Title() string { return h.docType.Title() }

func (h *templateHandler) Prompt(pctx projects.GenerationContext) (llm.Prompt, error) {
	if strings.TrimSpace(pctx.Idea) == "" {
		return llm.Prompt{}, fmt.Errorf("project has no idea to generate a %s from", h.docType)
	}
	var b strings.Builder
	if err := h.tmpl.Execute(&b, pctx); err != nil {
		return llm.Prompt{}, fmt.Errorf("render %s prompt: %w", h.docType, err)
	}
	return llm.Prompt{System: systemPrompt, User: b.String()}, nil
}

func (h *templateHandler) Validate(content string) error {
	return checkMarkdown(content, h.minSections)
}

var (
	prdHandler = newTemplateHandler(enums.DocumentTypePRD, `Product Requirements Document
{{template "context" .}}
Write a PRD with sections for problem statement, target users, goals and non-goals, functional requirements, and success metrics.`, 3)

	userFlowHandler = newTemplateHandler(enums.DocumentTypeUserFlow, `User Flow
{{template "context" .}}
Describe the primary user journeys step by step, including entry points, decisions, and error paths.`, 2)

	architectureHandler = newTemplateHandler(enums.DocumentTypeArchitecture, `System Architecture
{{template "context" .}}
Describe the components, their responsibilities, how data moves between them, and deployment concerns.{{if .Tools}} Prefer the listed tools.{{end}}`, 2)

	schemaHandler = newTemplateHandler(enums.DocumentTypeSchema, `Database Schema
{{template "context" .}}
Define every table with its columns, types, keys, and indexes, and explain the relationships between tables.`, 2)

	apiSpecHandler = newTemplateHandler(enums.DocumentTypeAPISpec, `API Specification
{{template "context" .}}
List the endpoints with method, path, request body, response body, and error codes. Group them by resource.`, 2)
)

// HandlerFor returns the handler for t. Adding a DocumentType requires a case here.
func HandlerFor(t enums.DocumentType) (Handler, error) {
	switch t {
	case enums.DocumentTypePRD:
		return prdHandler, nil
	case enums.DocumentTypeUserFlow:
		return userFlowHandler, nil
	case enums.DocumentTypeArchitecture:
		return architectureHandler, nil
	case enums.DocumentTypeSchema:
		return schemaHandler, nil
	case enums.DocumentTypeAPISpec:
		return apiSpecHandler, nil
	default:
		return nil, fmt.Errorf("no generation handler for document type %q", t)
	}
}
