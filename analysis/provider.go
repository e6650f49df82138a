/*
Package analysis implements the brand visibility stages run by the pipeline.

The stages talk to the outside world only through three narrow interfaces:
Provider (an AI assistant answering prompts), SiteInspector (reads the brand's
own site) and MentionSource (press mentions from a news feed).
*/
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/monitoring"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
)

// Provider is an AI assistant whose answers are scanned for the brand
type Provider interface {
	Name() string
	Ask(ctx context.Context, prompt string) (string, error)
}

// ChatConfig configures a ChatProvider
type ChatConfig struct {
	Name     string
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// ChatProvider implements Provider against an OpenAI-compatible chat
// completions endpoint
type ChatProvider struct {
	name       string
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Provider = (*ChatProvider)(nil)

// NewChatProvider builds a provider from configuration
func NewChatProvider(cfg ChatConfig) *ChatProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &ChatProvider{
		name:     name,
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name identifies the provider in results and metrics
func (c *ChatProvider) Name() string {
	return c.name
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Ask sends prompt as a single user message and returns the reply text
func (c *ChatProvider) Ask(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		monitoring.RecordProviderRequest(c.name, "misconfigured")
		return "", c.serviceError(fmt.Sprintf("%s API key not configured", c.displayName()), nil)
	}
	if c.endpoint == "" || c.model == "" {
		monitoring.RecordProviderRequest(c.name, "misconfigured")
		return "", c.serviceError(fmt.Sprintf("%s provider misconfigured", c.displayName()), nil)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a knowledgeable assistant helping buyers compare products and services. Answer concisely and rank options when asked."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.RecordProviderRequest(c.name, "error")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", c.serviceError(fmt.Sprintf("%s request failed: %v", c.displayName(), err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		monitoring.RecordProviderRequest(c.name, fmt.Sprintf("%d", resp.StatusCode))
		return "", c.statusError(resp.StatusCode, resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		monitoring.RecordProviderRequest(c.name, "invalid_response")
		return "", fmt.Errorf("decode %s response: %w", c.name, err)
	}
	if len(decoded.Choices) == 0 {
		monitoring.RecordProviderRequest(c.name, "invalid_response")
		return "", fmt.Errorf("%s returned no choices", c.name)
	}

	monitoring.RecordProviderRequest(c.name, "success")
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// statusError maps actionable upstream rejections onto caller-facing messages
func (c *ChatProvider) statusError(code int, status, body string) error {
	name := c.displayName()
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return c.serviceError(fmt.Sprintf("Invalid %s API key", name), nil)
	case http.StatusPaymentRequired:
		return c.serviceError("Insufficient credits. Please top up your "+name+" account.", nil)
	case http.StatusTooManyRequests:
		if strings.Contains(body, "insufficient_quota") {
			return c.serviceError("Insufficient credits. Please top up your "+name+" account.", nil)
		}
		return c.serviceError(fmt.Sprintf("%s rate limit exceeded. Please try again later.", name), nil)
	}
	if code >= http.StatusInternalServerError {
		return c.serviceError(fmt.Sprintf("%s is temporarily unavailable (%s)", name, status), nil)
	}
	return c.serviceError(fmt.Sprintf("%s error %s: %s", name, status, body), nil)
}

func (c *ChatProvider) serviceError(message string, err error) error {
	return &types.ExternalServiceError{Service: c.name, Message: message, Err: err}
}

func (c *ChatProvider) displayName() string {
	switch strings.ToLower(c.name) {
	case "openai":
		return "OpenAI"
	case "anthropic":
		return "Anthropic"
	case "perplexity":
		return "Perplexity"
	}
	return c.name
}
