package providers

import "fmt"

// FromConfig constructs a Provider from a stored model configuration row.
// The provider tag selects the wire dialect; unknown tags fall back to the
// OpenAI-compatible client, which covers most hosted gateways.
func FromConfig(provider, modelID, apiKey, baseURL string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("provider %q: api key is empty", provider)
	}
	if modelID == "" {
		return nil, fmt.Errorf("provider %q: model id is empty", provider)
	}

	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey, baseURL, modelID), nil
	case "openai", "deepseek", "qwen", "openrouter", "":
		return NewOpenAIProvider(orDefault(provider, "openai"), apiKey, baseURL, modelID), nil
	default:
		// OpenAI-compatible is the lingua franca of hosted endpoints.
		return NewOpenAIProvider(provider, apiKey, baseURL, modelID), nil
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
