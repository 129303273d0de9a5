package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chatlas-ai/chatlas/internal/config"
	"github.com/chatlas-ai/chatlas/internal/core"
	"github.com/chatlas-ai/chatlas/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.Email, user.PasswordHash)
	return err
}

const userColumns = `id, email, password_hash, ai_provider, COALESCE(ai_api_key, ''),
		COALESCE(ai_base_url, ''), default_model, created_at, updated_at`

func (c *DatabaseClient) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AIProvider, &u.AIAPIKey,
		&u.AIBaseURL, &u.DefaultModel, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return c.scanUser(c.db.QueryRowContext(ctx, q, email))
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return c.scanUser(c.db.QueryRowContext(ctx, q, id))
}

func (c *DatabaseClient) UpdateAISettings(ctx context.Context, userID string, patch *core.AISettingsPatch) error {
	if patch == nil {
		return nil
	}
	sets := []string{"updated_at = now()"}
	args := []any{userID}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Provider != nil {
		add("ai_provider", *patch.Provider)
	}
	if patch.APIKey != nil {
		if *patch.APIKey == "" {
			sets = append(sets, "ai_api_key = NULL")
		} else {
			add("ai_api_key", *patch.APIKey)
		}
	}
	if patch.BaseURL != nil {
		add("ai_base_url", *patch.BaseURL)
	}
	if patch.DefaultModel != nil {
		add("default_model", *patch.DefaultModel)
	}

	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1`, strings.Join(sets, ", "))
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// Bots

func (c *DatabaseClient) CreateBot(ctx context.Context, bot *models.Bot) error {
	if bot == nil {
		return errors.New("nil bot")
	}
	const q = `
		INSERT INTO bots
			(id, user_id, name, description, welcome_message, theme_color,
			 model, temperature, max_tokens, system_prompt, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		bot.ID, bot.UserID, bot.Name, bot.Description, bot.WelcomeMessage, bot.ThemeColor,
		bot.Model, bot.Temperature, bot.MaxTokens, bot.SystemPrompt, bot.IsPublic)
	return err
}

const botColumns = `id, user_id, name, description, welcome_message, theme_color,
		model, temperature, max_tokens, system_prompt, is_public, created_at, updated_at`

func scanBot(scan func(dest ...any) error) (*models.Bot, error) {
	var b models.Bot
	err := scan(&b.ID, &b.UserID, &b.Name, &b.Description, &b.WelcomeMessage, &b.ThemeColor,
		&b.Model, &b.Temperature, &b.MaxTokens, &b.SystemPrompt, &b.IsPublic, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *DatabaseClient) GetBotByID(ctx context.Context, id string) (*models.Bot, error) {
	q := `SELECT ` + botColumns + ` FROM bots WHERE id = $1`
	bot, err := scanBot(c.db.QueryRowContext(ctx, q, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bot, nil
}

func (c *DatabaseClient) ListBotsByUser(ctx context.Context, userID string) ([]models.Bot, error) {
	q := `SELECT ` + botColumns + ` FROM bots WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bot
	for rows.Next() {
		b, err := scanBot(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateBot(ctx context.Context, bot *models.Bot) error {
	if bot == nil {
		return errors.New("nil bot")
	}
	const q = `
		UPDATE bots SET
			name = $2, description = $3, welcome_message = $4, theme_color = $5,
			model = $6, temperature = $7, max_tokens = $8, system_prompt = $9,
			is_public = $10, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q,
		bot.ID, bot.Name, bot.Description, bot.WelcomeMessage, bot.ThemeColor,
		bot.Model, bot.Temperature, bot.MaxTokens, bot.SystemPrompt, bot.IsPublic)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("bot not found: %s", bot.ID)
	}
	return nil
}

func (c *DatabaseClient) DeleteBot(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM bots WHERE id = $1`, id)
	return err
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents (id, bot_id, name, content, token_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.BotID, doc.Name, doc.Content, doc.TokenCount, doc.Status)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, bot_id, name, content, token_count, status, created_at, updated_at
		FROM documents WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.BotID, &d.Name, &d.Content, &d.TokenCount, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByBot(ctx context.Context, botID string) ([]models.Document, error) {
	const q = `
		SELECT id, bot_id, name, token_count, status, created_at, updated_at
		FROM documents WHERE bot_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.BotID, &d.Name, &d.TokenCount, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) SetDocumentReady(ctx context.Context, id string, tokenCount int) error {
	const q = `
		UPDATE documents SET status = $2, token_count = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, models.DocStatusReady, tokenCount)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	// Chunk rows go with it via ON DELETE CASCADE.
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// Document chunks

// InsertDocumentChunks inserts one batch in a single transaction.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks (id, document_id, bot_id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		var vec any
		if len(ch.Embedding) > 0 {
			vec = pgvector.NewVector(ch.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.BotID, ch.Content, vec, meta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SearchChunks finds the most similar chunks within one bot's collection
// using pgvector cosine similarity, ordered best first.
func (c *DatabaseClient) SearchChunks(ctx context.Context, botID string, queryVec []float32, minSimilarity float64, limit int) ([]models.RetrievedContext, error) {
	const q = `
		SELECT content, metadata, 1 - (embedding <=> $2) AS similarity
		FROM document_chunks
		WHERE bot_id = $1
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $2) > $3
		ORDER BY embedding <=> $2
		LIMIT $4
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, botID, vec, minSimilarity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RetrievedContext
	for rows.Next() {
		var (
			rc   models.RetrievedContext
			meta []byte
		)
		if err := rows.Scan(&rc.Content, &meta, &rc.Similarity); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rc.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// Conversations

func (c *DatabaseClient) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	const q = `
		INSERT INTO conversations (id, bot_id, visitor_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, conv.ID, conv.BotID, conv.VisitorID, conv.Title)
	return err
}

func (c *DatabaseClient) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	const q = `
		SELECT id, bot_id, visitor_id, title, created_at, updated_at
		FROM conversations WHERE id = $1
	`
	var conv models.Conversation
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&conv.ID, &conv.BotID, &conv.VisitorID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *DatabaseClient) ListConversationsByBot(ctx context.Context, botID string) ([]models.Conversation, error) {
	const q = `
		SELECT id, bot_id, visitor_id, title, created_at, updated_at
		FROM conversations WHERE bot_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.BotID, &conv.VisitorID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// Messages

// InsertMessage appends a message and bumps the conversation's updated_at
// in one transaction.
func (c *DatabaseClient) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	var sources any
	if len(msg.Sources) > 0 {
		b, err := json.Marshal(msg.Sources)
		if err != nil {
			return err
		}
		sources = b
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO messages (id, conversation_id, role, content, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, q, msg.ID, msg.ConversationID, msg.Role, msg.Content, sources, msg.CreatedAt); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, msg.ConversationID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const messageColumns = `id, conversation_id, role, content, sources, created_at`

func scanMessage(scan func(dest ...any) error) (*models.Message, error) {
	var (
		m       models.Message
		sources []byte
	)
	if err := scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &m.Sources); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (c *DatabaseClient) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	rows, err := c.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListMessagesBefore returns up to limit messages created strictly before
// the given time, excluding excludeID, in chronological order. Used to
// build chat history without double-counting the current turn's user
// message.
func (c *DatabaseClient) ListMessagesBefore(ctx context.Context, conversationID, excludeID string, before time.Time, limit int) ([]models.Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1 AND id <> $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`
	rows, err := c.db.QueryContext(ctx, q, conversationID, excludeID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to chronological.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
