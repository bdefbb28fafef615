package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/valpere/restyle/internal/resilience"
)

const DefaultModel = "text-embedding-3-small"

// OpenAI implements Provider against any OpenAI-compatible /embeddings
// endpoint.
type OpenAI struct {
	client *openai.Client
	guard  *resilience.Guard
	model  openai.EmbeddingModel
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Resilience resilience.Config
}

// NewOpenAI creates a provider. An empty BaseURL uses the public OpenAI API.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding API key not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if cfg.Resilience.Retryable == nil {
		cfg.Resilience.Retryable = resilience.OpenAIRetryable
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		guard:  resilience.New("embedding", cfg.Resilience),
		model:  openai.EmbeddingModel(model),
	}, nil
}

// Embed returns the embedding for a single text.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp openai.EmbeddingResponse
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: p.model,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}
