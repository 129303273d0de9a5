package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/core"
)

// Embedding model choices offered to bot owners. Local models are a
// cost-saving fallback served by an optional in-process runtime.
const DefaultEmbeddingModel = "text-embedding-v3"

var EmbeddingModels = []string{
	DefaultEmbeddingModel,
	"local-bge-small-zh-v1.5",
	"local-all-MiniLM-L6-v2",
}

const localModelPrefix = "local-"

// IsValidEmbeddingModel reports whether model is in the enumerated set.
func IsValidEmbeddingModel(model string) bool {
	for _, m := range EmbeddingModels {
		if m == model {
			return true
		}
	}
	return false
}

var _ core.EmbeddingProvider = (*Embedder)(nil)

// Embedder dispatches between the remote and local embedding families by
// model name prefix.
//
// Failure policy, deliberately asymmetric (do not "fix" into uniform
// handling):
//   - local runtime unavailable  -> empty vector, warn log
//   - remote key missing         -> empty vector, warn log
//   - remote vendor call failed  -> hard error (aborts the ingestion batch)
type Embedder struct {
	remote *RemoteEmbedder
	local  *LocalEmbedder
	log    *zap.Logger
}

func NewEmbedder(remote *RemoteEmbedder, local *LocalEmbedder, log *zap.Logger) *Embedder {
	return &Embedder{remote: remote, local: local, log: log}
}

// Embed returns a vector for one text. An empty vector with nil error
// signals "not available"; callers persist it and degrade retrieval rather
// than failing the batch.
func (e *Embedder) Embed(ctx context.Context, text, model string, cfg *core.EmbedConfig) ([]float32, error) {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if strings.HasPrefix(model, localModelPrefix) {
		vec, err := e.local.Embed(ctx, model, text)
		if err != nil {
			e.log.Warn("local embedding model unavailable, skipping",
				zap.String("model", model),
				zap.Error(err))
			return []float32{}, nil
		}
		return vec, nil
	}
	return e.remote.Embed(ctx, text, model, cfg)
}
