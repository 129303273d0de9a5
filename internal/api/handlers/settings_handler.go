package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/api/middlewares"
	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/core/llm"
)

// maskPrefix marks an API key value as redacted. Clients echo masked keys
// back on save, which the update path treats as "unchanged".
const maskPrefix = "****"

type SettingsHandler struct {
	dbclient core.DbClient
	log      *zap.Logger
}

func NewSettingsHandler(dbclient core.DbClient, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{dbclient: dbclient, log: log}
}

type aiSettingsResponse struct {
	Provider     string               `json:"provider"`
	APIKey       string               `json:"api_key"`
	HasAPIKey    bool                 `json:"has_api_key"`
	BaseURL      string               `json:"base_url"`
	DefaultModel string               `json:"default_model"`
	Providers    []llm.ProviderPreset `json:"providers"`
}

func (h *SettingsHandler) GetAISettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	user, err := h.dbclient.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		h.log.Error("load user", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load settings")
		return
	}

	writeJSON(w, http.StatusOK, aiSettingsResponse{
		Provider:     user.AIProvider,
		APIKey:       MaskAPIKey(user.AIAPIKey),
		HasAPIKey:    user.AIAPIKey != "",
		BaseURL:      user.AIBaseURL,
		DefaultModel: user.DefaultModel,
		Providers:    llm.ProviderPresets,
	})
}

type aiSettingsRequest struct {
	Provider     *string `json:"provider"`
	APIKey       *string `json:"api_key"`
	BaseURL      *string `json:"base_url"`
	DefaultModel *string `json:"default_model"`
}

func (h *SettingsHandler) UpdateAISettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req aiSettingsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Provider != nil {
		if _, ok := llm.PresetByID(*req.Provider); !ok {
			writeError(w, http.StatusBadRequest, "unknown provider")
			return
		}
	}

	patch := &core.AISettingsPatch{
		Provider:     req.Provider,
		BaseURL:      req.BaseURL,
		DefaultModel: req.DefaultModel,
	}
	// A masked key is the redacted echo of the stored one, not a new
	// value. An explicit empty string clears the key.
	if req.APIKey != nil && !strings.HasPrefix(*req.APIKey, maskPrefix) {
		patch.APIKey = req.APIKey
	}

	if err := h.dbclient.UpdateAISettings(r.Context(), userID, patch); err != nil {
		h.log.Error("update ai settings", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update settings")
		return
	}

	h.GetAISettings(w, r)
}

// MaskAPIKey redacts all but the last four characters of a stored key.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	runes := []rune(key)
	if len(runes) <= 4 {
		return maskPrefix
	}
	return maskPrefix + string(runes[len(runes)-4:])
}
