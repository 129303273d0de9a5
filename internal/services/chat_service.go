package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/core/rag"
	"github.com/chatlas-ai/chatlas/internal/models"
)

const (
	// historyWindow bounds how many prior messages are replayed to the
	// provider on each turn.
	historyWindow = 10

	// titleMaxRunes caps the auto-generated conversation title.
	titleMaxRunes = 100

	// sourceMaxRunes caps the citation excerpt sent to the widget.
	sourceMaxRunes = 200

	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1000
)

var (
	ErrBotNotFound         = errors.New("bot not found")
	ErrAPIKeyNotConfigured = errors.New("AI provider API key is not configured")
)

// StreamEvent is one SSE payload of a chat turn. Exactly one field group is
// set per event: Text deltas, a Sources batch, the Done marker, or Error.
type StreamEvent struct {
	Text           string          `json:"text,omitempty"`
	Sources        []models.Source `json:"sources,omitempty"`
	Done           bool            `json:"done,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// ChatTurn is one inbound visitor message.
type ChatTurn struct {
	BotID          string
	Message        string
	VisitorID      string
	ConversationID string
	// UserID is the authenticated caller, empty for anonymous widget
	// visitors. Private bots only answer their owner.
	UserID string
}

// ContextRetriever finds grounding material for a query; failures degrade
// to an empty result inside the implementation.
type ContextRetriever interface {
	Retrieve(ctx context.Context, botID, query string) []models.RetrievedContext
}

// chatStore is the slice of the database layer a chat turn touches.
type chatStore interface {
	GetBotByID(ctx context.Context, id string) (*models.Bot, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessagesBefore(ctx context.Context, conversationID, excludeID string, before time.Time, limit int) ([]models.Message, error)
}

// ChatService runs one RAG chat turn end to end: resolve the bot and its
// owner's provider credentials, persist the user message, retrieve context,
// stream the completion, then persist the assistant reply.
type ChatService struct {
	store     chatStore
	retriever ContextRetriever
	transport core.ChatTransport
	log       *zap.Logger
}

func NewChatService(store chatStore, retriever ContextRetriever, transport core.ChatTransport, log *zap.Logger) *ChatService {
	return &ChatService{store: store, retriever: retriever, transport: transport, log: log}
}

// StreamReply executes one chat turn, calling emit once per stream event.
// Precondition failures (unknown bot, missing API key) are returned as
// errors before any event is emitted; mid-stream provider failures are
// reported in-band as an Error event and a nil return.
func (s *ChatService) StreamReply(ctx context.Context, turn ChatTurn, emit func(ev StreamEvent) error) error {
	bot, err := s.store.GetBotByID(ctx, turn.BotID)
	if err != nil {
		return fmt.Errorf("load bot: %w", err)
	}
	if bot == nil {
		return ErrBotNotFound
	}
	if !bot.IsPublic && turn.UserID != bot.UserID {
		// Private bots are invisible to everyone but their owner.
		return ErrBotNotFound
	}

	owner, err := s.store.GetUserByID(ctx, bot.UserID)
	if err != nil {
		return fmt.Errorf("load bot owner: %w", err)
	}
	if owner == nil {
		return ErrBotNotFound
	}
	if owner.AIAPIKey == "" {
		return ErrAPIKeyNotConfigured
	}

	aiCfg := core.AIConfig{
		Provider: owner.AIProvider,
		APIKey:   owner.AIAPIKey,
		BaseURL:  owner.AIBaseURL,
	}
	if aiCfg.Provider == "" {
		aiCfg.Provider = "openai"
	}

	conv, err := s.resolveConversation(ctx, turn)
	if err != nil {
		return err
	}

	userMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        turn.Message,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	contexts := s.retriever.Retrieve(ctx, bot.ID, turn.Message)
	systemPrompt := rag.BuildContextPrompt(bot.SystemPrompt, contexts)

	messages, err := s.buildMessages(ctx, conv.ID, userMsg, systemPrompt)
	if err != nil {
		return err
	}

	req := core.ChatRequest{
		Model:       s.resolveModel(bot, owner),
		Temperature: bot.Temperature,
		MaxTokens:   bot.MaxTokens,
		Messages:    messages,
		Config:      aiCfg,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	var (
		reply      []byte
		emitFailed bool
	)
	streamErr := s.transport.Stream(ctx, req, func(text string) error {
		reply = append(reply, text...)
		if !emitFailed {
			if err := emit(StreamEvent{Text: text}); err != nil {
				// Keep draining the provider so the reply can still be
				// persisted for the conversation history.
				emitFailed = true
			}
		}
		return nil
	})
	if streamErr != nil {
		s.log.Error("provider stream failed",
			zap.String("bot_id", bot.ID),
			zap.String("provider", aiCfg.Provider),
			zap.Error(streamErr))
		if !emitFailed {
			_ = emit(StreamEvent{Error: "Stream interrupted"})
		}
		return nil
	}

	sources := sourcesFromContexts(contexts)
	if !emitFailed {
		if len(sources) > 0 {
			if err := emit(StreamEvent{Sources: sources}); err != nil {
				emitFailed = true
			}
		}
	}
	if !emitFailed {
		_ = emit(StreamEvent{Done: true, ConversationID: conv.ID})
	}

	// Persist even when the client went away mid-stream.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	assistantMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        string(reply),
		Sources:        sources,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertMessage(persistCtx, assistantMsg); err != nil {
		s.log.Error("persist assistant message failed",
			zap.String("conversation_id", conv.ID), zap.Error(err))
	}
	return nil
}

// resolveConversation loads the existing conversation or lazily creates one
// titled with the opening message.
func (s *ChatService) resolveConversation(ctx context.Context, turn ChatTurn) (*models.Conversation, error) {
	if turn.ConversationID != "" {
		conv, err := s.store.GetConversationByID(ctx, turn.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		if conv != nil && conv.BotID == turn.BotID {
			return conv, nil
		}
		// Unknown or foreign conversation id, fall through to a fresh one.
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		BotID:     turn.BotID,
		VisitorID: turn.VisitorID,
		Title:     truncateRunes(turn.Message, titleMaxRunes),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// buildMessages assembles the provider payload: system prompt, a bounded
// window of prior turns, then the current user message.
func (s *ChatService) buildMessages(ctx context.Context, conversationID string, userMsg *models.Message, systemPrompt string) ([]core.ChatMessage, error) {
	history, err := s.store.ListMessagesBefore(ctx, conversationID, userMsg.ID, userMsg.CreatedAt, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := make([]core.ChatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, core.ChatMessage{Role: models.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		if m.Role == models.RoleSystem {
			continue
		}
		messages = append(messages, core.ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, core.ChatMessage{Role: models.RoleUser, Content: userMsg.Content})
	return messages, nil
}

func (s *ChatService) resolveModel(bot *models.Bot, owner *models.User) string {
	if bot.Model != "" {
		return bot.Model
	}
	if owner.DefaultModel != "" {
		return owner.DefaultModel
	}
	return defaultModel
}

func sourcesFromContexts(contexts []models.RetrievedContext) []models.Source {
	if len(contexts) == 0 {
		return nil
	}
	sources := make([]models.Source, len(contexts))
	for i, rc := range contexts {
		sources[i] = models.Source{
			Content:    truncateRunes(rc.Content, sourceMaxRunes),
			Metadata:   rc.Metadata,
			Similarity: rc.Similarity,
		}
	}
	return sources
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
