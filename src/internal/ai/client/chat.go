package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// ChatClient speaks the OpenAI-compatible chat completions protocol.
// OpenRouter, Groq and self-hosted gateways all expose this surface, so a
// single core handles every provider; constructors only differ in defaults.
type ChatClient struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	headers    map[string]string
	httpClient *http.Client
	maxRetries int
}

type ChatConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Proxy   string
	// Headers are sent on every request in addition to auth.
	Headers map[string]string
}

func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient, err := internal.CreateProxyHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.Proxy != "" {
		logger.Debug("Using proxy: %s", cfg.Proxy)
	}

	return &ChatClient{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		headers:    cfg.Headers,
		httpClient: httpClient,
		maxRetries: 3,
	}, nil
}

func (c *ChatClient) isRetryableError(err error) bool {
	if _, ok := err.(*NonRetryableError); ok {
		return false
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "context canceled") ||
		strings.Contains(errStr, "context deadline exceeded") {
		return false
	}
	return true
}

func (c *ChatClient) doRequest(ctx context.Context, jsonData []byte) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errMsg := string(body)
		if len(errMsg) > 4096 {
			errMsg = errMsg[:4096] + "...(truncated)"
		}
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			return "", fmt.Errorf("API temporary error status %d: %s", resp.StatusCode, errMsg)
		}
		return "", &NonRetryableError{StatusCode: resp.StatusCode, Message: errMsg}
	}

	var apiResp ChatCompletionResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		msg := fmt.Sprintf("%s (type: %s, code: %s)", apiResp.Error.Message, apiResp.Error.Type, apiResp.Error.Code)
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "rate") || strings.Contains(lower, "limit") || strings.Contains(lower, "429") {
			return "", fmt.Errorf("API temporary error: %s", msg)
		}
		return "", &NonRetryableError{StatusCode: resp.StatusCode, Message: msg}
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	logger.Debug("Token usage: prompt=%d, completion=%d, total=%d",
		apiResp.Usage.PromptTokens,
		apiResp.Usage.CompletionTokens,
		apiResp.Usage.TotalTokens)

	return apiResp.Choices[0].Message.Content, nil
}

func (c *ChatClient) sendWithRetry(ctx context.Context, jsonData []byte) (string, error) {
	var lastErr error
	baseDelay := 2 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		content, err := c.doRequest(ctx, jsonData)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !c.isRetryableError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("exceeded max retries (%d), last error: %w", c.maxRetries, lastErr)
}

// SendPrompt runs one completion. temperature and maxTokens of zero fall
// back to provider defaults via omitempty.
func (c *ChatClient) SendPrompt(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: userPrompt})

	reqBody := ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.sendWithRetry(ctx, jsonData)
}

// SendPromptJSON forces a JSON object response where the provider supports it.
func (c *ChatClient) SendPromptJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: userPrompt})

	reqBody := ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.1,
		MaxTokens:   maxTokens,
		ResponseFormat: map[string]interface{}{
			"type": "json_object",
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.sendWithRetry(ctx, jsonData)
}

func (c *ChatClient) GetName() string {
	return fmt.Sprintf("%s (%s)", c.name, c.model)
}

func (c *ChatClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
