package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
)

// PostgresStore implements Store on a pgx connection pool. Messages are
// stored as a JSONB array of role messages; AppendTurn relies on row-level
// locking of the UPDATE for per-conversation serialization.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool and verifies it with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Ping verifies the pool still reaches the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return core.NewPersistenceError("ping", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, userID string, lessonID int) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, lesson_id, status, messages, created_at, updated_at
		FROM conversations
		WHERE user_id = $1 AND lesson_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, lessonID, StatusUnfinished)

	conv, err := scanConversation(row)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, core.NewPersistenceError("get conversation", err)
	}

	row = s.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, lesson_id, status, messages)
		VALUES ($1, $2, $3, '[]'::jsonb)
		RETURNING id, user_id, lesson_id, status, messages, created_at, updated_at`,
		userID, lessonID, StatusUnfinished)

	conv, err = scanConversation(row)
	if err != nil {
		return nil, core.NewPersistenceError("create conversation", err)
	}
	return conv, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, conversationID, userText, assistantText string, outcome Outcome) (*Conversation, error) {
	turn, err := json.Marshal([]chat.Message{
		{Role: chat.RoleUser, Content: userText},
		{Role: chat.RoleAssistant, Content: assistantText},
	})
	if err != nil {
		return nil, core.NewPersistenceError("encode turn", err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE conversations
		SET messages = messages || $2::jsonb,
		    status = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, user_id, lesson_id, status, messages, created_at, updated_at`,
		conversationID, turn, outcome.Status())

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, core.NewPersistenceError("append turn", err)
	}
	return conv, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, lesson_id, status, messages, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, core.NewPersistenceError("list conversations", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, core.NewPersistenceError("scan conversation", err)
		}
		out = append(out, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewPersistenceError("list conversations", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendMentorMessages(ctx context.Context, userID, chatID string, messages []chat.Message) (*MentorChat, error) {
	encoded, err := json.Marshal(messages)
	if err != nil {
		return nil, core.NewPersistenceError("encode mentor messages", err)
	}

	var row pgx.Row
	if chatID == "" {
		row = s.pool.QueryRow(ctx, `
			INSERT INTO mentor_chats (user_id, messages)
			VALUES ($1, $2::jsonb)
			RETURNING id, user_id, messages, created_at, updated_at`,
			userID, encoded)
	} else {
		row = s.pool.QueryRow(ctx, `
			UPDATE mentor_chats
			SET messages = messages || $3::jsonb,
			    updated_at = now()
			WHERE id = $2 AND user_id = $1
			RETURNING id, user_id, messages, created_at, updated_at`,
			userID, chatID, encoded)
	}

	mc, err := scanMentorChat(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, core.NewPersistenceError("append mentor messages", err)
	}
	return mc, nil
}

func (s *PostgresStore) GetMentorChat(ctx context.Context, userID, chatID string) (*MentorChat, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, messages, created_at, updated_at
		FROM mentor_chats
		WHERE id = $2 AND user_id = $1`,
		userID, chatID)

	mc, err := scanMentorChat(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, core.NewPersistenceError("get mentor chat", err)
	}
	return mc, nil
}

func (s *PostgresStore) ListMentorChats(ctx context.Context, userID string) ([]MentorChat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, messages, created_at, updated_at
		FROM mentor_chats
		WHERE user_id = $1
		ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, core.NewPersistenceError("list mentor chats", err)
	}
	defer rows.Close()

	var out []MentorChat
	for rows.Next() {
		mc, err := scanMentorChat(rows)
		if err != nil {
			return nil, core.NewPersistenceError("scan mentor chat", err)
		}
		out = append(out, *mc)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewPersistenceError("list mentor chats", err)
	}
	return out, nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var conv Conversation
	var raw []byte
	if err := row.Scan(&conv.ID, &conv.UserID, &conv.LessonID, &conv.Status, &raw, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &conv.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	return &conv, nil
}

func scanMentorChat(row pgx.Row) (*MentorChat, error) {
	var mc MentorChat
	var raw []byte
	if err := row.Scan(&mc.ID, &mc.UserID, &raw, &mc.CreatedAt, &mc.UpdatedAt); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &mc.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	return &mc, nil
}
