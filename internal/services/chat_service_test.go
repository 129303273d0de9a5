package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/models"
)

type memStore struct {
	bots          map[string]*models.Bot
	users         map[string]*models.User
	conversations map[string]*models.Conversation
	messages      []models.Message
}

func newMemStore() *memStore {
	return &memStore{
		bots:          make(map[string]*models.Bot),
		users:         make(map[string]*models.User),
		conversations: make(map[string]*models.Conversation),
	}
}

func (m *memStore) GetBotByID(ctx context.Context, id string) (*models.Bot, error) {
	return m.bots[id], nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *memStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	cp := *conv
	m.conversations[conv.ID] = &cp
	return nil
}

func (m *memStore) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	return m.conversations[id], nil
}

func (m *memStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) ListMessagesBefore(ctx context.Context, conversationID, excludeID string, before time.Time, limit int) ([]models.Message, error) {
	var hits []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.ID != excludeID && msg.CreatedAt.Before(before) {
			hits = append(hits, msg)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].CreatedAt.Before(hits[j].CreatedAt) })
	if len(hits) > limit {
		hits = hits[len(hits)-limit:]
	}
	return hits, nil
}

func (m *memStore) messagesByRole(role string) []models.Message {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

type stubRetriever struct {
	contexts []models.RetrievedContext
}

func (s *stubRetriever) Retrieve(ctx context.Context, botID, query string) []models.RetrievedContext {
	return s.contexts
}

// scriptedTransport yields its deltas, then optionally fails. It records
// the request for assertions.
type scriptedTransport struct {
	deltas []string
	err    error
	gotReq core.ChatRequest
}

func (s *scriptedTransport) Stream(ctx context.Context, req core.ChatRequest, yield func(text string) error) error {
	s.gotReq = req
	for _, d := range s.deltas {
		if err := yield(d); err != nil {
			return err
		}
	}
	return s.err
}

func seedBot(store *memStore) *models.Bot {
	store.users["user-1"] = &models.User{
		ID:         "user-1",
		Email:      "owner@example.com",
		AIProvider: "openai",
		AIAPIKey:   "sk-test",
	}
	bot := &models.Bot{
		ID:           "bot-1",
		UserID:       "user-1",
		Name:         "Support",
		Model:        "gpt-4o-mini",
		Temperature:  0.7,
		MaxTokens:    1000,
		SystemPrompt: "Answer politely.",
		IsPublic:     true,
	}
	store.bots[bot.ID] = bot
	return bot
}

func collectEvents(t *testing.T, svc *ChatService, turn ChatTurn) ([]StreamEvent, error) {
	t.Helper()
	var events []StreamEvent
	err := svc.StreamReply(context.Background(), turn, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func TestStreamReply(t *testing.T) {
	t.Run("unknown bot", func(t *testing.T) {
		store := newMemStore()
		svc := NewChatService(store, &stubRetriever{}, &scriptedTransport{}, zaptest.NewLogger(t))

		_, err := collectEvents(t, svc, ChatTurn{BotID: "nope", Message: "hi"})
		assert.ErrorIs(t, err, ErrBotNotFound)
		assert.Empty(t, store.messages)
	})

	t.Run("private bot hidden from strangers", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		bot.IsPublic = false
		svc := NewChatService(store, &stubRetriever{}, &scriptedTransport{deltas: []string{"hi"}}, zaptest.NewLogger(t))

		_, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "hi"})
		assert.ErrorIs(t, err, ErrBotNotFound)

		_, err = collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "hi", UserID: "someone-else"})
		assert.ErrorIs(t, err, ErrBotNotFound)

		_, err = collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "hi", UserID: "user-1"})
		assert.NoError(t, err)
	})

	t.Run("missing api key leaves no trace", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		store.users["user-1"].AIAPIKey = ""
		svc := NewChatService(store, &stubRetriever{}, &scriptedTransport{}, zaptest.NewLogger(t))

		events, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "hi"})
		assert.ErrorIs(t, err, ErrAPIKeyNotConfigured)
		assert.Empty(t, events)
		assert.Empty(t, store.messages)
		assert.Empty(t, store.conversations)
	})

	t.Run("first message creates a titled conversation", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		transport := &scriptedTransport{deltas: []string{"Hello", " there"}}
		svc := NewChatService(store, &stubRetriever{}, transport, zaptest.NewLogger(t))

		long := strings.Repeat("标", 120)
		events, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: long, VisitorID: "v-1"})
		require.NoError(t, err)

		require.Len(t, store.conversations, 1)
		for _, conv := range store.conversations {
			assert.Equal(t, strings.Repeat("标", 100), conv.Title)
			assert.Equal(t, "v-1", conv.VisitorID)
		}

		done := events[len(events)-1]
		assert.True(t, done.Done)
		assert.NotEmpty(t, done.ConversationID)

		users := store.messagesByRole(models.RoleUser)
		require.Len(t, users, 1)
		assert.Equal(t, long, users[0].Content)
	})

	t.Run("streams deltas then done and persists the reply", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		contexts := []models.RetrievedContext{
			{Content: strings.Repeat("x", 300), Metadata: models.ChunkMetadata{ChunkIndex: 2, DocumentName: "faq.md"}, Similarity: 0.83},
		}
		transport := &scriptedTransport{deltas: []string{"The ", "answer."}}
		svc := NewChatService(store, &stubRetriever{contexts: contexts}, transport, zaptest.NewLogger(t))

		events, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "question?"})
		require.NoError(t, err)

		require.Len(t, events, 4)
		assert.Equal(t, "The ", events[0].Text)
		assert.Equal(t, "answer.", events[1].Text)
		require.Len(t, events[2].Sources, 1)
		assert.Equal(t, 200, len([]rune(events[2].Sources[0].Content)))
		assert.Equal(t, "faq.md", events[2].Sources[0].Metadata.DocumentName)
		assert.True(t, events[3].Done)

		assistants := store.messagesByRole(models.RoleAssistant)
		require.Len(t, assistants, 1)
		assert.Equal(t, "The answer.", assistants[0].Content)
		require.Len(t, assistants[0].Sources, 1)
		assert.Equal(t, 200, len([]rune(assistants[0].Sources[0].Content)))

		// The system prompt sent upstream carries the retrieved context.
		require.NotEmpty(t, transport.gotReq.Messages)
		sys := transport.gotReq.Messages[0]
		assert.Equal(t, models.RoleSystem, sys.Role)
		assert.Contains(t, sys.Content, "Answer politely.")
		assert.Contains(t, sys.Content, "[Document 1]")
	})

	t.Run("provider failure reports stream interrupted", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		transport := &scriptedTransport{deltas: []string{"par", "tial"}, err: errors.New("upstream reset")}
		svc := NewChatService(store, &stubRetriever{}, transport, zaptest.NewLogger(t))

		events, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "hi"})
		require.NoError(t, err)

		require.Len(t, events, 3)
		assert.Equal(t, "par", events[0].Text)
		assert.Equal(t, "tial", events[1].Text)
		assert.Equal(t, "Stream interrupted", events[2].Error)

		// The user turn is kept, the partial reply is not.
		assert.Len(t, store.messagesByRole(models.RoleUser), 1)
		assert.Empty(t, store.messagesByRole(models.RoleAssistant))
	})

	t.Run("history replays prior turns without system rows", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		conv := &models.Conversation{ID: "conv-1", BotID: bot.ID, Title: "old"}
		store.conversations[conv.ID] = conv

		base := time.Now().Add(-time.Hour)
		for i, m := range []models.Message{
			{Role: models.RoleUser, Content: "first question"},
			{Role: models.RoleAssistant, Content: "first answer"},
			{Role: models.RoleSystem, Content: "internal note"},
		} {
			m.ID = string(rune('a' + i))
			m.ConversationID = conv.ID
			m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			store.messages = append(store.messages, m)
		}

		transport := &scriptedTransport{deltas: []string{"ok"}}
		svc := NewChatService(store, &stubRetriever{}, transport, zaptest.NewLogger(t))

		_, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "second question", ConversationID: conv.ID})
		require.NoError(t, err)

		msgs := transport.gotReq.Messages
		require.Len(t, msgs, 4)
		assert.Equal(t, models.RoleSystem, msgs[0].Role)
		assert.Equal(t, "first question", msgs[1].Content)
		assert.Equal(t, "first answer", msgs[2].Content)
		assert.Equal(t, core.ChatMessage{Role: models.RoleUser, Content: "second question"}, msgs[3])
	})

	t.Run("foreign conversation id starts a fresh one", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		store.conversations["other"] = &models.Conversation{ID: "other", BotID: "another-bot"}

		transport := &scriptedTransport{deltas: []string{"ok"}}
		svc := NewChatService(store, &stubRetriever{}, transport, zaptest.NewLogger(t))

		events, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "hi", ConversationID: "other"})
		require.NoError(t, err)

		done := events[len(events)-1]
		assert.True(t, done.Done)
		assert.NotEqual(t, "other", done.ConversationID)
		assert.Len(t, store.conversations, 2)
	})

	t.Run("model and token defaults resolve from bot then owner", func(t *testing.T) {
		store := newMemStore()
		bot := seedBot(store)
		bot.Model = ""
		bot.MaxTokens = 0
		store.users["user-1"].DefaultModel = "deepseek-chat"

		transport := &scriptedTransport{deltas: []string{"ok"}}
		svc := NewChatService(store, &stubRetriever{}, transport, zaptest.NewLogger(t))

		_, err := collectEvents(t, svc, ChatTurn{BotID: bot.ID, Message: "hi"})
		require.NoError(t, err)

		assert.Equal(t, "deepseek-chat", transport.gotReq.Model)
		assert.Equal(t, defaultMaxTokens, transport.gotReq.MaxTokens)
		assert.Equal(t, "sk-test", transport.gotReq.Config.APIKey)
		assert.Equal(t, "openai", transport.gotReq.Config.Provider)
	})
}
