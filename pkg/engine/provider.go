package engine

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/go-go-golems/basilisk/pkg/conversation"
)

// Provider is static metadata about a provider.
type Provider struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	BaseURL           string `json:"base_url" yaml:"base_url"`
	RequireAPIKey     bool   `json:"require_api_key" yaml:"require_api_key"`
	OpenAICompatible  bool   `json:"openai_compatible" yaml:"openai_compatible"`
	AllowLocalBaseURL bool   `json:"allow_local_base_url" yaml:"allow_local_base_url"`
}

var providers = map[string]Provider{
	"anthropic": {
		ID:            "anthropic",
		Name:          "Anthropic",
		BaseURL:       "https://api.anthropic.com",
		RequireAPIKey: true,
	},
	"infomaniak": {
		ID:               "infomaniak",
		Name:             "Infomaniak",
		BaseURL:          "https://api.infomaniak.com/1/ai",
		RequireAPIKey:    true,
		OpenAICompatible: true,
	},
	"mistralai": {
		ID:            "mistralai",
		Name:          "Mistral AI",
		BaseURL:       "https://api.mistral.ai",
		RequireAPIKey: true,
	},
	"ollama": {
		ID:                "ollama",
		Name:              "Ollama",
		BaseURL:           "http://localhost:11434",
		AllowLocalBaseURL: true,
	},
	"openai": {
		ID:               "openai",
		Name:             "OpenAI",
		BaseURL:          "https://api.openai.com/v1",
		RequireAPIKey:    true,
		OpenAICompatible: true,
	},
	"openrouter": {
		ID:               "openrouter",
		Name:             "OpenRouter",
		BaseURL:          "https://openrouter.ai/api/v1",
		RequireAPIKey:    true,
		OpenAICompatible: true,
	},
}

func GetProvider(id string) (Provider, bool) {
	p, ok := providers[id]
	return p, ok
}

// Providers lists the known providers sorted by id.
func Providers() []Provider {
	ret := make([]Provider, 0, len(providers))
	for _, p := range providers {
		ret = append(ret, p)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret
}

// NewAIModelInfo builds a model reference for a known provider.
func NewAIModelInfo(providerID string, modelID string) (conversation.AIModelInfo, error) {
	if _, ok := GetProvider(providerID); !ok {
		return conversation.AIModelInfo{}, errors.Wrapf(ErrUnknownProvider, "provider %q", providerID)
	}
	return conversation.NewAIModelInfo(providerID, modelID)
}
