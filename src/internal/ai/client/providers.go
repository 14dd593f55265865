package client

import (
	"fmt"
	"time"
)

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Proxy   string
}

func NewOpenRouterClient(cfg ProviderConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-oss-120b"
	}
	return NewChatClient(ChatConfig{
		Name:    "OpenRouter",
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Proxy:   cfg.Proxy,
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/CovenantBits/Covforge",
			"X-Title":      "Covforge",
		},
	})
}

func NewGroqClient(cfg ProviderConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	return NewChatClient(ChatConfig{
		Name:    "Groq",
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Proxy:   cfg.Proxy,
	})
}

func NewOpenAIClient(cfg ProviderConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return NewChatClient(ChatConfig{
		Name:    "OpenAI",
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Proxy:   cfg.Proxy,
	})
}

// NewLocalClient targets an OpenAI-compatible local server (ollama serve,
// llama.cpp, vllm). No auth; local inference needs a longer timeout.
func NewLocalClient(cfg ProviderConfig) (*ChatClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return NewChatClient(ChatConfig{
		Name:    "Local LLM",
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Proxy:   cfg.Proxy,
	})
}
