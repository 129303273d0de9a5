package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/models"
	"github.com/chatlas-ai/chatlas/internal/services"
)

type chatStoreStub struct {
	bot      *models.Bot
	owner    *models.User
	messages []models.Message
}

func (s *chatStoreStub) GetBotByID(ctx context.Context, id string) (*models.Bot, error) {
	if s.bot != nil && s.bot.ID == id {
		return s.bot, nil
	}
	return nil, nil
}

func (s *chatStoreStub) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.owner, nil
}

func (s *chatStoreStub) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return nil
}

func (s *chatStoreStub) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	return nil, nil
}

func (s *chatStoreStub) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *chatStoreStub) ListMessagesBefore(ctx context.Context, conversationID, excludeID string, before time.Time, limit int) ([]models.Message, error) {
	return nil, nil
}

type noRetriever struct{}

func (noRetriever) Retrieve(ctx context.Context, botID, query string) []models.RetrievedContext {
	return nil
}

type fixedTransport struct{ deltas []string }

func (f fixedTransport) Stream(ctx context.Context, req core.ChatRequest, yield func(text string) error) error {
	for _, d := range f.deltas {
		if err := yield(d); err != nil {
			return err
		}
	}
	return nil
}

func newChatServer(t *testing.T, store *chatStoreStub, transport core.ChatTransport) *chi.Mux {
	svc := services.NewChatService(store, noRetriever{}, transport, zaptest.NewLogger(t))
	h := NewChatHandler(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Post("/api/chat/{botID}", h.Stream)
	return r
}

func TestChatHandlerStream(t *testing.T) {
	store := &chatStoreStub{
		bot: &models.Bot{
			ID: "bot-1", UserID: "user-1", Model: "gpt-4o-mini",
			MaxTokens: 1000, IsPublic: true,
		},
		owner: &models.User{ID: "user-1", AIProvider: "openai", AIAPIKey: "sk-test"},
	}

	t.Run("streams sse frames", func(t *testing.T) {
		r := newChatServer(t, store, fixedTransport{deltas: []string{"Hel", "lo"}})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/bot-1",
			strings.NewReader(`{"message":"hi there","visitorId":"v-1"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

		body := rec.Body.String()
		assert.Contains(t, body, `data: {"text":"Hel"}`)
		assert.Contains(t, body, `data: {"text":"lo"}`)
		assert.Contains(t, body, `"done":true`)
		assert.Contains(t, body, `"conversationId"`)
	})

	t.Run("unknown bot is a 404 before streaming", func(t *testing.T) {
		r := newChatServer(t, store, fixedTransport{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/ghost",
			strings.NewReader(`{"message":"hi","visitorId":"v-1"}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing message is a 400", func(t *testing.T) {
		r := newChatServer(t, store, fixedTransport{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/bot-1",
			strings.NewReader(`{"visitorId":"v-1"}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing visitor id is a 400", func(t *testing.T) {
		fresh := &chatStoreStub{bot: store.bot, owner: store.owner}
		r := newChatServer(t, fresh, fixedTransport{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/bot-1",
			strings.NewReader(`{"message":"hi"}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, fresh.messages)
	})

	t.Run("unconfigured key is a 422", func(t *testing.T) {
		bare := &chatStoreStub{
			bot:   store.bot,
			owner: &models.User{ID: "user-1", AIProvider: "openai"},
		}
		r := newChatServer(t, bare, fixedTransport{})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/bot-1",
			strings.NewReader(`{"message":"hi","visitorId":"v-1"}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
