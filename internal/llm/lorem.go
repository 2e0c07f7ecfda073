package llm

import (
	"context"
	"strings"
	"sync"

	loremgen "github.com/bozaro/golorem"
)

// LoremClient fabricates markdown-shaped placeholder text. It needs no API key
// and is used in development and tests.
type LoremClient struct {
	mu        sync.Mutex
	generator *loremgen.Lorem
}

func NewLoremClient() *LoremClient {
	return &LoremClient{generator: loremgen.New()}
}

func (c *LoremClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(titleFrom(prompt.User, c.generator.Sentence(3, 6)))
	b.WriteString("\n\n")
	b.WriteString(c.generator.Paragraph(2, 4))
	for i := 0; i < 3; i++ {
		b.WriteString("\n\n## ")
		b.WriteString(strings.TrimSuffix(c.generator.Sentence(2, 5), "."))
		b.WriteString("\n\n")
		b.WriteString(c.generator.Paragraph(3, 5))
		b.WriteString("\n\n- ")
		b.WriteString(c.generator.Sentence(5, 10))
		b.WriteString("\n- ")
		b.WriteString(c.generator.Sentence(5, 10))
	}
	b.WriteString("\n")
	return b.String(), nil
}

// titleFrom uses the first prompt line as the heading when there is one.
func titleFrom(user, fallback string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(user), "\n")
	line = strings.TrimSpace(strings.TrimLeft(line, "# "))
	if line == "" {
		return strings.TrimSuffix(fallback, ".")
	}
	return line
}
