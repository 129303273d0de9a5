package ingestion_engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/models"
)

// ErrProcessingFailed is the generic caller-visible ingestion failure; the
// underlying cause is logged, and the document row is left in error status.
var ErrProcessingFailed = errors.New("failed to process document")

// IngestConfig tunes the pipeline.
//
// ChunkSize:    maximum chunk length in runes (e.g., 500).
// ChunkOverlap: overlap between consecutive chunks (e.g., 50).
// BatchSize:    chunks embedded and persisted per batch insert (e.g., 10).
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// ChunkStore is the slice of persistence the pipeline needs.
type ChunkStore interface {
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	UpdateDocumentStatus(ctx context.Context, id, status string) error
	SetDocumentReady(ctx context.Context, id string, tokenCount int) error
}

// IngestResult summarizes a successful ingestion.
type IngestResult struct {
	TokenCount int `json:"token_count"`
	ChunkCount int `json:"chunk_count"`
}

// DocumentIngestor chunks a document's extracted text, embeds every chunk
// and persists the chunk rows in ordered batches.
type DocumentIngestor struct {
	db       ChunkStore
	embedder core.EmbeddingProvider
	cfg      *IngestConfig
	log      *zap.Logger
}

func NewDocumentIngestor(db ChunkStore, emb core.EmbeddingProvider, cfg *IngestConfig, log *zap.Logger) *DocumentIngestor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &DocumentIngestor{db: db, embedder: emb, cfg: cfg, log: log}
}

// Ingest processes one document whose row already exists with status
// processing. Batches are persisted strictly in order; embedding calls
// inside a batch run concurrently. Any failure flips the document to error
// status and surfaces ErrProcessingFailed; no partial ready state is ever
// visible, even though earlier batches may already be persisted (the
// delete/retry path removes them with the document).
func (i *DocumentIngestor) Ingest(ctx context.Context, doc *models.Document, embedModel string, embedCfg *core.EmbedConfig) (*IngestResult, error) {
	chunks := SplitText(doc.Content, i.cfg.ChunkSize, i.cfg.ChunkOverlap)

	totalTokens := 0
	for start := 0; start < len(chunks); start += i.cfg.BatchSize {
		end := start + i.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		records := make([]models.DocumentChunk, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for j, content := range batch {
			g.Go(func() error {
				vec, err := i.embedder.Embed(gctx, content, embedModel, embedCfg)
				if err != nil {
					return fmt.Errorf("embed chunk %d: %w", start+j, err)
				}
				rec, err := models.NewDocumentChunk(doc, start+j, content, vec)
				if err != nil {
					return err
				}
				records[j] = *rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, i.fail(ctx, doc.ID, err)
		}

		for _, content := range batch {
			totalTokens += (runeLen(content) + 3) / 4
		}

		if err := i.db.InsertDocumentChunks(ctx, records); err != nil {
			return nil, i.fail(ctx, doc.ID, fmt.Errorf("insert chunk batch: %w", err))
		}
	}

	if err := i.db.SetDocumentReady(ctx, doc.ID, totalTokens); err != nil {
		return nil, i.fail(ctx, doc.ID, fmt.Errorf("mark document ready: %w", err))
	}

	return &IngestResult{TokenCount: totalTokens, ChunkCount: len(chunks)}, nil
}

// fail marks the document as errored on a detached context so the status
// update survives caller cancellation.
func (i *DocumentIngestor) fail(ctx context.Context, docID string, cause error) error {
	i.log.Error("document ingestion failed",
		zap.String("document_id", docID),
		zap.Error(cause))
	if err := i.db.UpdateDocumentStatus(context.WithoutCancel(ctx), docID, models.DocStatusError); err != nil {
		i.log.Error("failed to mark document as errored",
			zap.String("document_id", docID),
			zap.Error(err))
	}
	return ErrProcessingFailed
}
