package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/api/middlewares"
	"github.com/chatlas-ai/chatlas/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
	log  *zap.Logger
}

func NewChatHandler(chat *services.ChatService, log *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log}
}

type chatRequest struct {
	Message        string `json:"message" validate:"required"`
	ConversationID string `json:"conversationId"`
	VisitorID      string `json:"visitorId" validate:"required"`
}

// Stream answers one chat message over SSE. The route is public so the
// embeddable widget can reach it without an account.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	turn := services.ChatTurn{
		BotID:          chi.URLParam(r, "botID"),
		Message:        req.Message,
		VisitorID:      req.VisitorID,
		ConversationID: req.ConversationID,
		UserID:         middleware.UserID(r.Context()),
	}

	headersSent := false
	emit := func(ev services.StreamEvent) error {
		if !headersSent {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			headersSent = true
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.chat.StreamReply(r.Context(), turn, emit); err != nil {
		if headersSent {
			// Too late for a status code; the stream just ends.
			h.log.Error("chat turn failed mid-stream", zap.Error(err))
			return
		}
		switch {
		case errors.Is(err, services.ErrBotNotFound):
			writeError(w, http.StatusNotFound, "bot not found")
		case errors.Is(err, services.ErrAPIKeyNotConfigured):
			writeError(w, http.StatusUnprocessableEntity,
				"AI provider API key is not configured. Please set it in Settings.")
		default:
			h.log.Error("chat turn failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "chat failed")
		}
	}
}
