package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated bot owner. The AI* fields hold the
// account-level provider configuration that every bot of this owner
// resolves its credentials from.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	AIProvider   string    `db:"ai_provider" json:"ai_provider"`
	AIAPIKey     string    `db:"ai_api_key" json:"-"`
	AIBaseURL    string    `db:"ai_base_url" json:"ai_base_url"`
	DefaultModel string    `db:"default_model" json:"default_model"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Bot is a chat persona backed by the owner's AI provider configuration.
type Bot struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	WelcomeMessage string    `db:"welcome_message" json:"welcome_message"`
	ThemeColor     string    `db:"theme_color" json:"theme_color"`
	Model          string    `db:"model" json:"model"`
	Temperature    float64   `db:"temperature" json:"temperature"`
	MaxTokens      int       `db:"max_tokens" json:"max_tokens"`
	SystemPrompt   string    `db:"system_prompt" json:"system_prompt"`
	IsPublic       bool      `db:"is_public" json:"is_public"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Document status values. A document is created as processing and ends in
// ready or error; error documents are unusable and eligible for delete/retry.
const (
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusError      = "error"
)

// Document represents an uploaded knowledge file after text extraction.
type Document struct {
	ID         string    `db:"id" json:"id"`
	BotID      string    `db:"bot_id" json:"bot_id"`
	Name       string    `db:"name" json:"name"`
	Content    string    `db:"content" json:"-"`
	TokenCount int       `db:"token_count" json:"token_count"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ChunkMetadata travels with every chunk row and every retrieved source.
type ChunkMetadata struct {
	ChunkIndex   int    `json:"chunk_index"`
	DocumentName string `json:"document_name"`
}

// DocumentChunk is one embedded slice of a document. BotID is denormalized
// from the parent document because retrieval is scoped per bot, not per
// document.
type DocumentChunk struct {
	ID         string        `db:"id" json:"id"`
	DocumentID string        `db:"document_id" json:"document_id"`
	BotID      string        `db:"bot_id" json:"bot_id"`
	Content    string        `db:"content" json:"content"`
	Embedding  []float32     `db:"embedding" json:"embedding"`
	Metadata   ChunkMetadata `db:"metadata" json:"metadata"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

var ErrChunkBotMismatch = errors.New("chunk bot id must match its document's bot id")

// NewDocumentChunk builds a chunk row from its parent document, so the
// bot-scoping invariant (chunk.BotID == document.BotID) holds by
// construction rather than by caller convention.
func NewDocumentChunk(doc *Document, index int, content string, embedding []float32) (*DocumentChunk, error) {
	if doc == nil || doc.BotID == "" {
		return nil, ErrChunkBotMismatch
	}
	return &DocumentChunk{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		BotID:      doc.BotID,
		Content:    content,
		Embedding:  embedding,
		Metadata: ChunkMetadata{
			ChunkIndex:   index,
			DocumentName: doc.Name,
		},
	}, nil
}

// Conversation is one visitor session with a bot, created lazily on the
// first message.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	BotID     string    `db:"bot_id" json:"bot_id"`
	VisitorID string    `db:"visitor_id" json:"visitor_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Source is a retrieval citation attached to an assistant message.
type Source struct {
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
}

// Message is one append-only entry of a conversation; ordering by CreatedAt
// defines the history.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Role           string    `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	Sources        []Source  `db:"sources" json:"sources,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// RetrievedContext is one similarity-search hit, ordered by descending
// similarity.
type RetrievedContext struct {
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
}
