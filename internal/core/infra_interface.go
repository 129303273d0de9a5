package core

import (
	"context"
	"time"

	"github.com/chatlas-ai/chatlas/internal/models"
)

// AISettingsPatch is a partial update of a user's provider configuration.
// Nil fields are left untouched; an empty-string APIKey clears the key.
type AISettingsPatch struct {
	Provider     *string
	APIKey       *string
	BaseURL      *string
	DefaultModel *string
}

// DbClient defines all persistence operations the services need. It
// abstracts Postgres/pgvector so higher layers never depend on a specific
// DB engine.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateAISettings(ctx context.Context, userID string, patch *AISettingsPatch) error

	CreateBot(ctx context.Context, bot *models.Bot) error
	GetBotByID(ctx context.Context, id string) (*models.Bot, error)
	ListBotsByUser(ctx context.Context, userID string) ([]models.Bot, error)
	UpdateBot(ctx context.Context, bot *models.Bot) error
	DeleteBot(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByBot(ctx context.Context, botID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, status string) error
	SetDocumentReady(ctx context.Context, id string, tokenCount int) error
	DeleteDocument(ctx context.Context, id string) error

	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	SearchChunks(ctx context.Context, botID string, queryVec []float32, minSimilarity float64, limit int) ([]models.RetrievedContext, error)

	CreateConversation(ctx context.Context, conv *models.Conversation) error
	ListConversationsByBot(ctx context.Context, botID string) ([]models.Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)

	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	ListMessagesBefore(ctx context.Context, conversationID, excludeID string, before time.Time, limit int) ([]models.Message, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
