// Package llm is the base HTTP client shared by every LLM provider the
// decision engine dispatches to: a functional-options constructor plus an
// explicit `hooks` field so provider-specific overrides dispatch dynamically
// even though Go's embedding gives no virtual methods on its own.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/logger"
	"github.com/perpctl/controlplane/internal/security"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Request is the provider-agnostic call shape; Metadata carries anything a
// provider-specific hook needs beyond the messages (mirrors mcp.Request).
type Request struct {
	Messages []Message
	Metadata map[string]any
}

// Response is what a provider call yields once parsed.
type Response struct {
	Text   string
	Tokens int
}

const callTimeout = 60 * time.Second

// Hooks is the set of methods a provider overrides; Client implements Hooks
// itself with OpenAI-compatible defaults, and `hooks` is repointed at the
// wrapping provider type so Client's own call sites dispatch dynamically.
type Hooks interface {
	buildURL() string
	setAuthHeader(h http.Header)
	buildRequestBody(systemPrompt, userPrompt string) map[string]any
	parseResponse(body []byte) (Response, error)
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

func WithProvider(p domain.ProviderType) ClientOption { return func(c *Client) { c.Provider = p } }
func WithModel(m string) ClientOption                 { return func(c *Client) { c.Model = m } }
func WithBaseURL(u string) ClientOption               { return func(c *Client) { c.BaseURL = u } }
func WithAPIKey(k string) ClientOption                { return func(c *Client) { c.APIKey = k } }

// Client is the OpenAI-compatible base; AnthropicClient/GeminiClient embed
// it and override the Hooks methods that differ.
type Client struct {
	Provider domain.ProviderType
	Model    string
	BaseURL  string
	APIKey   string

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	hooks      Hooks
}

// NewClient builds the base client and wires its own circuit breaker,
// isolating one provider's repeated failures from the orchestrator loop.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{httpClient: security.SafeHTTPClient(callTimeout)}
	for _, opt := range opts {
		opt(c)
	}
	c.hooks = c
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(c.Provider),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("⚠️  [llm] provider %s circuit breaker %s -> %s", name, from, to)
		},
	})
	return c
}

// SetHooks repoints dynamic dispatch at a wrapping provider type — called by
// every provider constructor immediately after NewClient.
func (c *Client) SetHooks(h Hooks) { c.hooks = h }

// Call sends one system+user prompt pair through the provider's wire shape
// and returns the parsed text/token count, tripping the breaker on repeated
// failure. Errors surface to the caller; nothing is swallowed here.
func (c *Client) Call(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doCall(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return Response{}, err
	}
	return result.(Response), nil
}

func (c *Client) doCall(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	body := c.hooks.buildRequestBody(systemPrompt, userPrompt)
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	callURL := c.hooks.buildURL()
	if err := security.ValidateURL(callURL); err != nil {
		return Response{}, fmt.Errorf("provider URL rejected: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.hooks.setAuthHeader(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s call: %w", c.Provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("%s returned %d: %s", c.Provider, resp.StatusCode, truncate(raw, 500))
	}

	return c.hooks.parseResponse(raw)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ---- default (OpenAI-compatible) Hooks implementation ----

func (c *Client) buildURL() string {
	return c.BaseURL + "/v1/chat/completions"
}

func (c *Client) setAuthHeader(h http.Header) {
	h.Set("Authorization", "Bearer "+c.APIKey)
}

func (c *Client) buildRequestBody(systemPrompt, userPrompt string) map[string]any {
	return map[string]any{
		"model":       c.Model,
		"temperature": 0.7,
		"max_tokens":  2000,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) parseResponse(raw []byte) (Response, error) {
	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("parse %s response: %w", c.Provider, err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("%s response had no choices", c.Provider)
	}
	return Response{Text: parsed.Choices[0].Message.Content, Tokens: parsed.Usage.TotalTokens}, nil
}
