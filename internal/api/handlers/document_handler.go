package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/api/middlewares"
	"github.com/chatlas-ai/chatlas/internal/config"
	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/core/ingestion_engine"
	"github.com/chatlas-ai/chatlas/internal/core/llm"
	"github.com/chatlas-ai/chatlas/internal/models"
)

type DocumentHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	extractor    core.TextExtractor
	ingestor     *ingestion_engine.DocumentIngestor
	cfg          *config.Config
	log          *zap.Logger
}

func NewDocumentHandler(dbclient core.DbClient, objectclient core.ObjectClient, extractor core.TextExtractor, ingestor *ingestion_engine.DocumentIngestor, cfg *config.Config, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		dbclient:     dbclient,
		objectclient: objectclient,
		extractor:    extractor,
		ingestor:     ingestor,
		cfg:          cfg,
		log:          log,
	}
}

type uploadResponse struct {
	ID         string    `json:"id"`
	BotID      string    `json:"bot_id"`
	Name       string    `json:"name"`
	TokenCount int       `json:"token_count"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Upload receives a knowledge file for one bot, extracts its text, stores
// the original in object storage and runs the full ingestion pipeline
// before responding.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	botID := chi.URLParam(r, "botID")

	bot, err := h.dbclient.GetBotByID(ctx, botID)
	if err != nil {
		h.log.Error("load bot", zap.String("bot_id", botID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load bot")
		return
	}
	if bot == nil || bot.UserID != userID {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	var (
		name        string
		data        []byte
		contentType string
		stored      bool
	)
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		name = filepath.Base(header.Filename)
		contentType = header.Header.Get("Content-Type")
		if data, err = io.ReadAll(file); err != nil {
			writeError(w, http.StatusBadRequest, "could not read file")
			return
		}
	} else if storagePath := r.FormValue("file_path"); storagePath != "" {
		// Re-ingest a previously uploaded object without a fresh upload.
		name = filepath.Base(storagePath)
		data, err = h.objectclient.GetFile(ctx, h.cfg.BucketName, storagePath)
		if err != nil {
			h.log.Error("fetch stored file", zap.String("key", storagePath), zap.Error(err))
			writeError(w, http.StatusBadRequest, "stored file not found")
			return
		}
		stored = true
	} else {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if !ingestion_engine.IsSupportedExt(ext) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported file format: .%s", ext))
		return
	}

	embedModel := r.FormValue("embedding_model")
	if embedModel == "" {
		embedModel = h.cfg.EmbedModel
	}
	if !llm.IsValidEmbeddingModel(embedModel) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unknown embedding model: %s", embedModel))
		return
	}

	// Extract before creating any document row so validation failures
	// leave no trace.
	text, err := h.extractor.Extract(data, ext)
	if err != nil {
		if errors.Is(err, ingestion_engine.ErrEmptyContent) {
			writeError(w, http.StatusBadRequest, "file has no extractable text")
			return
		}
		if errors.Is(err, ingestion_engine.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("text extraction failed", zap.String("file", name), zap.Error(err))
		writeError(w, http.StatusBadRequest, "could not extract text from file")
		return
	}

	doc := &models.Document{
		ID:        uuid.NewString(),
		BotID:     bot.ID,
		Name:      name,
		Content:   text,
		Status:    models.DocStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	if !stored {
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		s3Key := fmt.Sprintf("%s/%s/%s/%s", userID, bot.ID, doc.ID, name)
		uploadCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := h.objectclient.UploadFile(uploadCtx, h.cfg.BucketName, s3Key, data, contentType); err != nil {
			h.log.Error("object upload failed", zap.String("key", s3Key), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not store file")
			return
		}
	}

	if err := h.dbclient.CreateDocument(ctx, doc); err != nil {
		h.log.Error("create document", zap.String("document_id", doc.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store document")
		return
	}

	owner, err := h.dbclient.GetUserByID(ctx, userID)
	if err != nil || owner == nil {
		h.log.Error("load owner for ingest", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load account settings")
		return
	}
	embedCfg := &core.EmbedConfig{APIKey: owner.AIAPIKey, BaseURL: owner.AIBaseURL}

	result, err := h.ingestor.Ingest(ctx, doc, embedModel, embedCfg)
	if err != nil {
		// The document row stays behind in error status so the dashboard
		// can show it and offer delete/retry.
		h.log.Error("ingestion failed", zap.String("document_id", doc.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process document")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:         doc.ID,
		BotID:      doc.BotID,
		Name:       doc.Name,
		TokenCount: result.TokenCount,
		ChunkCount: result.ChunkCount,
		Status:     models.DocStatusReady,
		CreatedAt:  doc.CreatedAt,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	botID := chi.URLParam(r, "botID")

	bot, err := h.dbclient.GetBotByID(ctx, botID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load bot")
		return
	}
	if bot == nil || bot.UserID != userID {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}

	docs, err := h.dbclient.ListDocumentsByBot(ctx, botID)
	if err != nil {
		h.log.Error("list documents", zap.String("bot_id", botID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	docID := chi.URLParam(r, "documentID")

	doc, err := h.dbclient.GetDocumentByID(ctx, docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	bot, err := h.dbclient.GetBotByID(ctx, doc.BotID)
	if err != nil || bot == nil || bot.UserID != userID {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := h.dbclient.DeleteDocument(ctx, docID); err != nil {
		h.log.Error("delete document", zap.String("document_id", docID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}

	s3Key := fmt.Sprintf("%s/%s/%s/%s", userID, doc.BotID, doc.ID, doc.Name)
	if err := h.objectclient.DeleteFile(ctx, h.cfg.BucketName, s3Key); err != nil {
		// Orphaned object, not a failed request.
		h.log.Warn("object delete failed", zap.String("key", s3Key), zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}
