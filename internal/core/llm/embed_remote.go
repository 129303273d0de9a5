package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/core"
)

// RemoteEmbedder calls an OpenAI-compatible embeddings endpoint with a
// fixed output dimensionality. Credentials resolve from the caller config
// first, then the process defaults (DASHSCOPE_API_KEY and the Qwen
// compatible-mode endpoint).
type RemoteEmbedder struct {
	apiKey  string
	baseURL string
	dim     int
	log     *zap.Logger
}

func NewRemoteEmbedder(apiKey, baseURL string, dim int, log *zap.Logger) *RemoteEmbedder {
	return &RemoteEmbedder{apiKey: apiKey, baseURL: baseURL, dim: dim, log: log}
}

// Embed requests one embedding. A missing API key is a soft failure: the
// text gets an empty vector instead of aborting the whole ingestion.
func (r *RemoteEmbedder) Embed(ctx context.Context, text, model string, cfg *core.EmbedConfig) ([]float32, error) {
	apiKey, baseURL := r.apiKey, r.baseURL
	if cfg != nil && cfg.APIKey != "" {
		apiKey = cfg.APIKey
		if cfg.BaseURL != "" {
			baseURL = cfg.BaseURL
		}
	}
	if apiKey == "" {
		r.log.Warn("no embedding API key configured, skipping")
		return []float32{}, nil
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	resp, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Dimensions: openai.Int(int64(r.dim)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response for model %s has no data", model)
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
