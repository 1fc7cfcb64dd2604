package embedding

import (
	"fmt"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderLangChain = "langchain"
	ProviderHash      = "hash"
)

// Settings selects and configures a provider.
type Settings struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
}

// FactoryFor returns the provider factory named by s.Provider.
func FactoryFor(s Settings) (ProviderFactory, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case ProviderOpenAI:
		return OpenAIFactory(OpenAIConfig{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		}), nil
	case ProviderLangChain:
		return LangChainFactory(LangChainConfig{
			BaseURL: s.BaseURL,
			Token:   s.APIKey,
			Model:   s.Model,
		}), nil
	case ProviderHash, "":
		return HashFactory(s.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}
