package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/CovenantBits/Covforge/src/internal/ai/client"
)

// ProviderSettings carries per-provider credentials and transport options.
type ProviderSettings struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Proxy   string
}

// NewOracle builds an Oracle for one chain entry.
func NewOracle(tc TaskConfig, ps ProviderSettings) (Oracle, error) {
	pc := client.ProviderConfig{
		APIKey:  ps.APIKey,
		BaseURL: ps.BaseURL,
		Model:   tc.Model,
		Timeout: ps.Timeout,
		Proxy:   ps.Proxy,
	}

	var (
		cc  *client.ChatClient
		err error
	)
	switch tc.Provider {
	case "openrouter":
		cc, err = client.NewOpenRouterClient(pc)
	case "groq":
		cc, err = client.NewGroqClient(pc)
	case "openai", "openai-compatible":
		cc, err = client.NewOpenAIClient(pc)
	case "local", "ollama":
		cc, err = client.NewLocalClient(pc)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s (supported: openrouter, groq, openai, openai-compatible, local, ollama)", tc.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &chatOracle{client: cc, defaults: tc}, nil
}

func ValidateProvider(provider string) error {
	validProviders := map[string]bool{
		"openrouter":        true,
		"groq":              true,
		"openai":            true,
		"openai-compatible": true,
		"local":             true,
		"ollama":            true,
	}

	if !validProviders[provider] {
		return fmt.Errorf("invalid provider '%s', must be one of: openrouter, groq, openai, openai-compatible, local, ollama", provider)
	}

	return nil
}

// chatOracle adapts a ChatClient to the Oracle interface, filling zero
// request fields from the task defaults.
type chatOracle struct {
	client   *client.ChatClient
	defaults TaskConfig
}

func (o *chatOracle) Complete(ctx context.Context, req Request) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = o.defaults.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.defaults.MaxTokens
	}
	return o.client.SendPrompt(ctx, req.SystemPrompt, req.Prompt, temperature, maxTokens)
}

func (o *chatOracle) Name() string {
	return o.client.GetName()
}

func (o *chatOracle) Close() error {
	return o.client.Close()
}
