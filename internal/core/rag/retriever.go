package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/models"
)

// Retrieval tuning: contexts below the threshold are dropped, at most
// MatchCount are returned.
const (
	MatchThreshold = 0.5
	MatchCount     = 5
)

// ChunkSearcher is the similarity-search primitive the retriever needs;
// the search owns the distance metric and ranking.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, botID string, queryVec []float32, minSimilarity float64, limit int) ([]models.RetrievedContext, error)
}

// Retriever embeds a free-text query and finds the most similar chunks
// scoped to one bot. Retrieval is best effort: search failures degrade to
// "no context" instead of failing the chat turn.
type Retriever struct {
	searcher ChunkSearcher
	embedder core.EmbeddingProvider
	model    string
	log      *zap.Logger
}

func NewRetriever(searcher ChunkSearcher, embedder core.EmbeddingProvider, model string, log *zap.Logger) *Retriever {
	return &Retriever{searcher: searcher, embedder: embedder, model: model, log: log}
}

// Retrieve returns up to MatchCount contexts above MatchThreshold, ordered
// by descending similarity. A blank query, an unavailable embedding or a
// search backend error all yield an empty result.
func (r *Retriever) Retrieve(ctx context.Context, botID, query string) []models.RetrievedContext {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	vec, err := r.embedder.Embed(ctx, query, r.model, nil)
	if err != nil {
		r.log.Error("query embedding failed", zap.String("bot_id", botID), zap.Error(err))
		return nil
	}
	if len(vec) == 0 {
		return nil
	}

	contexts, err := r.searcher.SearchChunks(ctx, botID, vec, MatchThreshold, MatchCount)
	if err != nil {
		r.log.Error("vector search failed", zap.String("bot_id", botID), zap.Error(err))
		return nil
	}
	return contexts
}
