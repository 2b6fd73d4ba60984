// Package postgres provides a PostgreSQL implementation of
// transport.ConversationStore. It uses pgx/v5 for connection pooling and
// JSONB for the game payload of each message.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/storage"
	"github.com/rhuss/spielwerk/pkg/transport"
)

// Store is a PostgreSQL-backed ConversationStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.ConversationStore at compile time.
var _ transport.ConversationStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// CreateConversation persists a new conversation row. Messages carried on
// the struct are inserted as well.
func (s *Store) CreateConversation(ctx context.Context, conv *api.Conversation) error {
	tenantID := storage.GetTenant(ctx)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, tenant_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, conv.ID, tenantID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	for i := range conv.Messages {
		if err := insertMessage(ctx, tx, conv.ID, &conv.Messages[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetConversation retrieves a conversation with all its messages, ordered
// by creation time.
func (s *Store) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	tenantID := storage.GetTenant(ctx)

	query := `
		SELECT id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND deleted_at IS NULL
	`
	args := []any{id}
	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var conv api.Conversation
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, parent_message_id, user_prompt, enhanced_prompt,
		       retrieval_context, game, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}

	return &conv, nil
}

// AppendMessage adds a message to an existing conversation and bumps its
// updated_at timestamp.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg *api.Message) error {
	tenantID := storage.GetTenant(ctx)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := "UPDATE conversations SET updated_at = $1 WHERE id = $2 AND deleted_at IS NULL"
	args := []any{msg.CreatedAt, conversationID}
	if tenantID != "" {
		query += " AND tenant_id = $3"
		args = append(args, tenantID)
	}
	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	if err := insertMessage(ctx, tx, conversationID, msg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetMessage retrieves a single message from a conversation.
func (s *Store) GetMessage(ctx context.Context, conversationID, messageID string) (*api.Message, error) {
	tenantID := storage.GetTenant(ctx)

	query := `
		SELECT m.id, m.parent_message_id, m.user_prompt, m.enhanced_prompt,
		       m.retrieval_context, m.game, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = $1 AND m.id = $2 AND c.deleted_at IS NULL
	`
	args := []any{conversationID, messageID}
	if tenantID != "" {
		query += " AND c.tenant_id = $3"
		args = append(args, tenantID)
	}

	row := s.pool.QueryRow(ctx, query, args...)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return msg, err
}

// ListConversations returns a paginated list of conversation summaries
// ordered by updated_at.
func (s *Store) ListConversations(ctx context.Context, opts transport.ListOptions) (*transport.ConversationList, error) {
	tenantID := storage.GetTenant(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	order := "DESC"
	if opts.Order == "asc" {
		order = "ASC"
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT c.id, c.title, c.updated_at,
		       (SELECT count(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.deleted_at IS NULL
	`)
	args := []any{}
	argIdx := 1

	if tenantID != "" {
		fmt.Fprintf(&sb, " AND c.tenant_id = $%d", argIdx)
		args = append(args, tenantID)
		argIdx++
	}
	if opts.After != "" {
		cmp := "<"
		if order == "ASC" {
			cmp = ">"
		}
		fmt.Fprintf(&sb, ` AND (c.updated_at, c.id) %s (
			SELECT updated_at, id FROM conversations WHERE id = $%d)`, cmp, argIdx)
		args = append(args, opts.After)
		argIdx++
	}
	fmt.Fprintf(&sb, " ORDER BY c.updated_at %s, c.id %s LIMIT $%d", order, order, argIdx)
	// Fetch one extra row to compute HasMore.
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	result := &transport.ConversationList{Object: "list", Data: []api.ConversationSummary{}}
	for rows.Next() {
		var summary api.ConversationSummary
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.UpdatedAt, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		result.Data = append(result.Data, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}

	if len(result.Data) > limit {
		result.Data = result.Data[:limit]
		result.HasMore = true
	}
	if len(result.Data) > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[len(result.Data)-1].ID
	}
	return result, nil
}

// DeleteConversation soft-deletes a conversation by setting deleted_at.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tenantID := storage.GetTenant(ctx)

	query := "UPDATE conversations SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL"
	args := []any{time.Now(), id}
	if tenantID != "" {
		query += " AND tenant_id = $3"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// insertMessage inserts one message row inside an open transaction.
func insertMessage(ctx context.Context, tx pgx.Tx, conversationID string, msg *api.Message) error {
	var gameJSON []byte
	if msg.Game != nil {
		var err error
		gameJSON, err = json.Marshal(msg.Game)
		if err != nil {
			return fmt.Errorf("marshaling game payload: %w", err)
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO messages (
			id, conversation_id, parent_message_id,
			user_prompt, enhanced_prompt, retrieval_context,
			game, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		msg.ID, conversationID, nullString(msg.ParentMessageID),
		msg.UserPrompt, msg.EnhancedPrompt, msg.RetrievalContext,
		nullJSON(gameJSON), msg.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// scanMessage reads one message row.
func scanMessage(row pgx.Row) (*api.Message, error) {
	var msg api.Message
	var parentID *string
	var gameJSON *[]byte

	err := row.Scan(
		&msg.ID, &parentID, &msg.UserPrompt, &msg.EnhancedPrompt,
		&msg.RetrievalContext, &gameJSON, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		msg.ParentMessageID = *parentID
	}
	if gameJSON != nil {
		var game api.GameResult
		if err := json.Unmarshal(*gameJSON, &game); err != nil {
			return nil, fmt.Errorf("unmarshaling game payload: %w", err)
		}
		msg.Game = &game
	}
	return &msg, nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
