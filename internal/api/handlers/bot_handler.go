package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/api/middlewares"
	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/models"
)

type BotHandler struct {
	dbclient core.DbClient
	log      *zap.Logger
}

func NewBotHandler(dbclient core.DbClient, log *zap.Logger) *BotHandler {
	return &BotHandler{dbclient: dbclient, log: log}
}

type botRequest struct {
	Name           string   `json:"name" validate:"required,max=120"`
	Description    string   `json:"description"`
	WelcomeMessage string   `json:"welcome_message"`
	ThemeColor     string   `json:"theme_color"`
	Model          string   `json:"model"`
	Temperature    *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens      *int     `json:"max_tokens" validate:"omitempty,gt=0,lte=8192"`
	SystemPrompt   string   `json:"system_prompt"`
	IsPublic       *bool    `json:"is_public"`
}

func (h *BotHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req botRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bot := &models.Bot{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           req.Name,
		Description:    req.Description,
		WelcomeMessage: req.WelcomeMessage,
		ThemeColor:     req.ThemeColor,
		Model:          req.Model,
		Temperature:    0.7,
		MaxTokens:      1000,
		SystemPrompt:   req.SystemPrompt,
		IsPublic:       true,
	}
	if bot.Model == "" {
		bot.Model = "gpt-4o-mini"
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		bot.MaxTokens = *req.MaxTokens
	}
	if req.IsPublic != nil {
		bot.IsPublic = *req.IsPublic
	}

	if err := h.dbclient.CreateBot(r.Context(), bot); err != nil {
		h.log.Error("create bot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create bot")
		return
	}
	writeJSON(w, http.StatusCreated, bot)
}

func (h *BotHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	bots, err := h.dbclient.ListBotsByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("list bots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list bots")
		return
	}
	if bots == nil {
		bots = []models.Bot{}
	}
	writeJSON(w, http.StatusOK, bots)
}

func (h *BotHandler) Get(w http.ResponseWriter, r *http.Request) {
	bot, ok := h.ownedBot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *BotHandler) Update(w http.ResponseWriter, r *http.Request) {
	bot, ok := h.ownedBot(w, r)
	if !ok {
		return
	}

	var req botRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bot.Name = req.Name
	bot.Description = req.Description
	bot.WelcomeMessage = req.WelcomeMessage
	bot.ThemeColor = req.ThemeColor
	if req.Model != "" {
		bot.Model = req.Model
	}
	bot.SystemPrompt = req.SystemPrompt
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		bot.MaxTokens = *req.MaxTokens
	}
	if req.IsPublic != nil {
		bot.IsPublic = *req.IsPublic
	}

	if err := h.dbclient.UpdateBot(r.Context(), bot); err != nil {
		h.log.Error("update bot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update bot")
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *BotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bot, ok := h.ownedBot(w, r)
	if !ok {
		return
	}

	if err := h.dbclient.DeleteBot(r.Context(), bot.ID); err != nil {
		h.log.Error("delete bot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete bot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedBot loads the path bot and enforces ownership. Foreign bots read as
// 404 so bot ids cannot be probed.
func (h *BotHandler) ownedBot(w http.ResponseWriter, r *http.Request) (*models.Bot, bool) {
	userID := middleware.UserID(r.Context())
	botID := chi.URLParam(r, "botID")

	bot, err := h.dbclient.GetBotByID(r.Context(), botID)
	if err != nil {
		h.log.Error("load bot", zap.String("bot_id", botID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load bot")
		return nil, false
	}
	if bot == nil || bot.UserID != userID {
		writeError(w, http.StatusNotFound, "bot not found")
		return nil, false
	}
	return bot, true
}
