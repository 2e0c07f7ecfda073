package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/draftforge-backend/pkg/config"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("completion was empty")

// Prompt is a single-turn completion request.
type Prompt struct {
	System string
	User   string
}

// Client produces text for a prompt.
type Client interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// New returns the client selected by cfg.Provider.
func New(cfg config.GenerationConfig, anthropicCfg config.AnthropicConfig) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderAnthropic:
		return NewAnthropicClient(anthropicCfg.APIKey, cfg.Model, cfg.MaxTokens)
	case config.ProviderLorem, "":
		return NewLoremClient(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
