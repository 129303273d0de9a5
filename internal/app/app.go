package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/config"
	db "github.com/chatlas-ai/chatlas/internal/core/database"
	"github.com/chatlas-ai/chatlas/internal/core/ingestion_engine"
	"github.com/chatlas-ai/chatlas/internal/core/llm"
	objectclient "github.com/chatlas-ai/chatlas/internal/core/object-client"
	"github.com/chatlas-ai/chatlas/internal/core/rag"
	"github.com/chatlas-ai/chatlas/internal/services"
)

type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Server       *Server
	Log          *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg, log)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}

	remote := llm.NewRemoteEmbedder(cfg.EmbedAPIKey, cfg.EmbedBaseURL, cfg.EmbedDim, log)
	local := llm.NewLocalEmbedder(llm.NewRuntimeLoader(cfg.LocalEmbedURL))
	embedder := llm.NewEmbedder(remote, local, log)

	extractor := ingestion_engine.NewDocconvExtractor()
	ingestor := ingestion_engine.NewDocumentIngestor(dbClient, embedder, &ingestion_engine.IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.EmbedBatch,
	}, log)

	retriever := rag.NewRetriever(dbClient, embedder, cfg.EmbedModel, log)
	chatService := services.NewChatService(dbClient, retriever, llm.NewRouter(), log)

	server := NewServer(cfg, dbClient, objClient, extractor, ingestor, chatService, log)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Server:       server,
		Log:          log,
	}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
