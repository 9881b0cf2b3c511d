package llm

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/perpctl/controlplane/internal/domain"
)

// GeminiClient overrides the wire shape for Google's generateContent API:
// POST {base_url}/v1/{model}:generateContent?key=….
type GeminiClient struct {
	*Client
}

func NewGeminiClient(baseURL, apiKey, model string) *Client {
	base := NewClient(WithProvider(domain.ProviderGemini), WithBaseURL(baseURL), WithAPIKey(apiKey), WithModel(model))
	gc := &GeminiClient{Client: base}
	base.SetHooks(gc)
	return base
}

func (c *GeminiClient) buildURL() string {
	return fmt.Sprintf("%s/v1/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
}

// Gemini authenticates via the `key` query parameter, not a header.
func (c *GeminiClient) setAuthHeader(h http.Header) {}

func (c *GeminiClient) buildRequestBody(systemPrompt, userPrompt string) map[string]any {
	return map[string]any{
		"systemInstruction": map[string]any{
			"parts": []map[string]string{{"text": systemPrompt}},
		},
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": userPrompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     0.7,
			"maxOutputTokens": 2000,
		},
	}
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (c *GeminiClient) parseResponse(raw []byte) (Response, error) {
	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("parse gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Response{}, fmt.Errorf("gemini response had no candidates")
	}
	return Response{Text: parsed.Candidates[0].Content.Parts[0].Text, Tokens: parsed.UsageMetadata.TotalTokenCount}, nil
}
