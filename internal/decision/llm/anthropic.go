package llm

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/perpctl/controlplane/internal/domain"
)

// AnthropicClient overrides the wire shape for Anthropic's Messages API:
// POST {base_url}/v1/messages with the anthropic-version header.
type AnthropicClient struct {
	*Client
}

func NewAnthropicClient(baseURL, apiKey, model string) *Client {
	base := NewClient(WithProvider(domain.ProviderAnthropic), WithBaseURL(baseURL), WithAPIKey(apiKey), WithModel(model))
	ac := &AnthropicClient{Client: base}
	base.SetHooks(ac)
	return base
}

func (c *AnthropicClient) buildURL() string {
	return c.BaseURL + "/v1/messages"
}

func (c *AnthropicClient) setAuthHeader(h http.Header) {
	h.Set("x-api-key", c.APIKey)
	h.Set("anthropic-version", "2023-06-01")
}

func (c *AnthropicClient) buildRequestBody(systemPrompt, userPrompt string) map[string]any {
	return map[string]any{
		"model":      c.Model,
		"max_tokens": 2000,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": userPrompt},
		},
	}
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) parseResponse(raw []byte) (Response, error) {
	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("parse anthropic response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return Response{}, fmt.Errorf("anthropic response had no content blocks")
	}
	return Response{Text: parsed.Content[0].Text, Tokens: parsed.Usage.InputTokens + parsed.Usage.OutputTokens}, nil
}
