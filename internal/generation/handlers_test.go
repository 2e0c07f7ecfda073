package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/draftforge-backend/internal/llm"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
)

func TestEveryDocumentTypeHasAHandler(t *testing.T) {
	for _, docType := range enums.AllDocumentTypes() {
		handler, err := HandlerFor(docType)
		if err != nil {
			t.Fatalf("missing handler for %s: %v", docType, err)
		}
		if handler.Type() != docType {
			t.Fatalf("handler for %s reports type %s", docType, handler.Type())
		}
		if handler.Title() == "" {
			t.Fatalf("handler for %s has no title", docType)
		}
	}
	if _, err := HandlerFor(enums.DocumentType("roadmap")); err == nil {
		t.Fatal("expected unknown type to have no handler")
	}
}

func TestPromptIncludesProjectContext(t *testing.T) {
	handler, _ := HandlerFor(enums.DocumentTypeArchitecture)
	prompt, err := handler.Prompt(projects.GenerationContext{
		Idea:    "a bike sharing marketplace",
		Details: []projects.DetailAnswer{{Field: "audience", Answer: "commuters"}},
		Tools:   []string{"Go", "Postgres"},
		Plan:    "Phase 1: MVP",
	})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	for _, want := range []string{"System Architecture", "a bike sharing marketplace", "- audience: commuters", "Go, Postgres", "Phase 1: MVP", "Prefer the listed tools"} {
		if !strings.Contains(prompt.User, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt.User)
		}
	}
	if prompt.System == "" {
		t.Fatal("expected a system prompt")
	}
}

func TestPromptRequiresIdea(t *testing.T) {
	handler, _ := HandlerFor(enums.DocumentTypePRD)
	if _, err := handler.Prompt(projects.GenerationContext{}); err == nil {
		t.Fatal("expected empty idea to be rejected")
	}
}

func TestCheckMarkdown(t *testing.T) {
	cases := []struct {
		name    string
		content string
		min     int
		wantErr bool
	}{
		{name: "empty", content: "  ", min: 1, wantErr: true},
		{name: "no headings", content: "just a paragraph", min: 1, wantErr: true},
		{name: "headings only", content: "# One\n## Two", min: 2, wantErr: true},
		{name: "sectioned", content: "# One\n\nbody\n\n## Two\n\n- item", min: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkMarkdown(tc.content, tc.min)
			if (err != nil) != tc.wantErr {
				t.Fatalf("checkMarkdown() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

type stubClient struct {
	text  string
	err   error
	delay time.Duration
}

func (s stubClient) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestLLMGenerator(t *testing.T) {
	pctx := projects.GenerationContext{Idea: "an idea"}
	ctx := context.Background()

	gen, _ := NewLLMGenerator(stubClient{text: "# Flow\n\nstep\n\n## Errors\n\nretry"}, time.Second)
	if _, err := gen.Generate(ctx, enums.DocumentTypeUserFlow, pctx); err != nil {
		t.Fatalf("expected valid output to pass: %v", err)
	}

	gen, _ = NewLLMGenerator(stubClient{text: "no structure here"}, time.Second)
	if _, err := gen.Generate(ctx, enums.DocumentTypeUserFlow, pctx); err == nil {
		t.Fatal("expected malformed output to fail")
	}

	gen, _ = NewLLMGenerator(stubClient{err: errors.New("rate limited")}, time.Second)
	if _, err := gen.Generate(ctx, enums.DocumentTypeUserFlow, pctx); err == nil || err.Error() != "rate limited" {
		t.Fatalf("expected provider error to surface, got %v", err)
	}

	gen, _ = NewLLMGenerator(stubClient{delay: time.Second}, 10*time.Millisecond)
	_, err := gen.Generate(ctx, enums.DocumentTypeUserFlow, pctx)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestLoremOutputPassesEveryHandler(t *testing.T) {
	gen, _ := NewLLMGenerator(llm.NewLoremClient(), time.Second)
	for _, docType := range enums.AllDocumentTypes() {
		if _, err := gen.Generate(context.Background(), docType, projects.GenerationContext{Idea: "an idea"}); err != nil {
			t.Fatalf("lorem output rejected for %s: %v", docType, err)
		}
	}
}
