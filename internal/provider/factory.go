package provider

import "fmt"

// ID names one of the six concrete provider implementations spec.md §9's
// design note calls for: "a polymorphic interface with a closed set of
// concrete implementations ... selected by a small factory keyed on a
// provider-id enum."
type ID string

const (
	IDAnthropic  ID = "anthropic"
	IDGoogle     ID = "google"
	IDOllama     ID = "ollama"
	IDLlamaCpp   ID = "llamacpp"
	IDOpenAI     ID = "openai"
	IDOpenRouter ID = "openrouter"
)

// Credentials bundles the per-backend connection details the factory
// needs; only the fields relevant to ID are read.
type Credentials struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// New builds the Provider named by id. Ollama and llama.cpp need no API
// key (self-hosted); every other id requires Credentials.APIKey, except
// that OpenAI also accepts a Credentials.BaseURL in its place.
func New(id ID, creds Credentials) (Provider, error) {
	switch id {
	case IDAnthropic:
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:       creds.APIKey,
			BaseURL:      creds.BaseURL,
			DefaultModel: creds.DefaultModel,
		})
	case IDGoogle:
		return NewGoogleProvider(GoogleConfig{
			APIKey:       creds.APIKey,
			DefaultModel: creds.DefaultModel,
		})
	case IDOllama:
		return NewOllamaProvider(OllamaConfig{
			BaseURL:      creds.BaseURL,
			DefaultModel: creds.DefaultModel,
		}), nil
	case IDLlamaCpp:
		return NewLlamaCppProvider(creds.BaseURL, creds.DefaultModel)
	case IDOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:       creds.APIKey,
			BaseURL:      creds.BaseURL,
			DefaultModel: creds.DefaultModel,
		})
	case IDOpenRouter:
		return NewOpenRouterProvider(creds.APIKey, creds.DefaultModel)
	default:
		return nil, fmt.Errorf("provider: unknown provider id %q", id)
	}
}
