package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/draftforge-backend/internal/llm"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
)

// Generator produces the content of one document. Any error becomes that
// document's error message.
type Generator interface {
	Generate(ctx context.Context, docType enums.DocumentType, pctx projects.GenerationContext) (string, error)
}

// LLMGenerator renders the type's prompt, calls the completion client, and
// validates the answer.
type LLMGenerator struct {
	client  llm.Client
	timeout time.Duration
}

func NewLLMGenerator(client llm.Client, timeout time.Duration) (*LLMGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client required")
	}
	return &LLMGenerator{client: client, timeout: timeout}, nil
}

func (g *LLMGenerator) Generate(ctx context.Context, docType enums.DocumentType, pctx projects.GenerationContext) (string, error) {
	handler, err := HandlerFor(docType)
	if err != nil {
		return "", err
	}
	prompt, err := handler.Prompt(pctx)
	if err != nil {
		return "", err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	content, err := g.client.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("generation timed out after %s", g.timeout)
		}
		return "", err
	}
	content = strings.TrimSpace(content)
	if err := handler.Validate(content); err != nil {
		return "", err
	}
	return content, nil
}
