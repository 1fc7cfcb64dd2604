package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// LangChainConfig points at an OpenAI-compatible embedding server, such as
// a local text-embeddings server hosting a sentence-transformers model.
type LangChainConfig struct {
	BaseURL string
	Token   string
	Model   string
}

// LangChainProvider embeds through langchaingo.
type LangChainProvider struct {
	embedder embeddings.Embedder
}

func NewLangChainProvider(cfg LangChainConfig) (*LangChainProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base url is required")
	}
	token := cfg.Token
	if token == "" {
		// local servers usually ignore the token but the client requires one
		token = "none"
	}

	client, err := lcopenai.New(
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithToken(token),
		lcopenai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &LangChainProvider{embedder: embedder}, nil
}

// LangChainFactory returns a factory that builds a LangChainProvider on Init.
func LangChainFactory(cfg LangChainConfig) ProviderFactory {
	return func(ctx context.Context) (Provider, error) {
		return NewLangChainProvider(cfg)
	}
}

func (p *LangChainProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedder.EmbedDocuments(ctx, texts)
}

func (p *LangChainProvider) Close() error {
	return nil
}
