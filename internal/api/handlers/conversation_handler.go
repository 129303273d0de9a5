package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/api/middlewares"
	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/models"
)

type ConversationHandler struct {
	dbclient core.DbClient
	log      *zap.Logger
}

func NewConversationHandler(dbclient core.DbClient, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{dbclient: dbclient, log: log}
}

// ListByBot returns a bot's conversations, newest activity first. Owner only.
func (h *ConversationHandler) ListByBot(w http.ResponseWriter, r *http.Request) {
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

	convs, err := h.dbclient.ListConversationsByBot(ctx, botID)
	if err != nil {
		h.log.Error("list conversations", zap.String("bot_id", botID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list conversations")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

// Messages returns the full transcript of one conversation. Owner only.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	convID := chi.URLParam(r, "conversationID")

	conv, err := h.dbclient.GetConversationByID(ctx, convID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load conversation")
		return
	}
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	bot, err := h.dbclient.GetBotByID(ctx, conv.BotID)
	if err != nil || bot == nil || bot.UserID != userID {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	msgs, err := h.dbclient.ListMessages(ctx, convID)
	if err != nil {
		h.log.Error("list messages", zap.String("conversation_id", convID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}
