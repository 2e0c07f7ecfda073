package assist

import (
	"strings"
	"text/template"

	"github.com/angelmondragon/draftforge-backend/internal/llm"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
)

const systemPrompt = "You are a product strategist helping a founder shape a software product. Answer in concise markdown."

var prompts = template.Must(template.New("assist").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`
{{define "context"}}Idea: {{.Ctx.Idea}}
{{- range .Ctx.Details}}
- {{.Field}}: {{.Answer}}
{{- end}}
{{- if .Ctx.Tools}}
Tools: {{join .Ctx.Tools ", "}}
{{- end}}
{{- if .Ctx.HasPlan}}

Current plan:
{{.Ctx.Plan}}
{{- end}}{{end}}

{{define "refine"}}Rewrite the product idea below as one sharp paragraph. Name the target user, the problem, and what makes the product different. Return only the paragraph.

{{template "context" .}}{{end}}

{{define "plan"}}Draft a phased delivery plan for the product below. Use "## " headings per phase with bullet points for the work in each phase.

{{template "context" .}}{{end}}

{{define "answer"}}Answer the founder's question using the product context below.

{{template "context" .}}

Question: {{.Question}}{{end}}
`))

type promptData struct {
	Ctx      projects.GenerationContext
	Question string
}

func render(name string, data promptData) (llm.Prompt, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return llm.Prompt{}, err
	}
	return llm.Prompt{System: systemPrompt, User: strings.TrimSpace(b.String())}, nil
}
