package llm

import "github.com/perpctl/controlplane/internal/domain"

// NewForProvider dispatches to the right wire-shape wrapper by provider_type.
// openai/azure_openai/deepseek all speak the OpenAI-compatible shape the
// base Client already implements.
func NewForProvider(provider domain.ProviderType, baseURL, apiKey, model string) (*Client, error) {
	switch provider {
	case domain.ProviderOpenAI, domain.ProviderAzureOpenAI, domain.ProviderDeepSeek:
		return NewClient(WithProvider(provider), WithBaseURL(baseURL), WithAPIKey(apiKey), WithModel(model)), nil
	case domain.ProviderAnthropic:
		return NewAnthropicClient(baseURL, apiKey, model), nil
	case domain.ProviderGemini:
		return NewGeminiClient(baseURL, apiKey, model), nil
	default:
		return nil, &UnknownProviderError{Provider: provider}
	}
}

type UnknownProviderError struct {
	Provider domain.ProviderType
}

func (e *UnknownProviderError) Error() string {
	return "llm: unknown provider type " + string(e.Provider)
}
