package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func (r *ChatRepository) Get(ctx context.Context, chatID string) (*domain.Chat, error) {
	c := domain.Chat{ID: chatID}
	err := r.db.QueryRow(ctx, `
		SELECT members, last_message, sender_id, ts FROM chats WHERE id = $1
	`, chatID).Scan(&c.Members, &c.LastMessage, &c.SenderID, &c.Timestamp)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// MergeMembers adds members to the chat, creating it if needed.
func (r *ChatRepository) MergeMembers(ctx context.Context, chatID string, members map[string]string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chats (id, members) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET members = chats.members || EXCLUDED.members
	`, chatID, members)
	return err
}

func (r *ChatRepository) UpdateSummary(ctx context.Context, chatID string, s domain.ChatSummary) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chats (id, last_message, sender_id, ts) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET last_message = EXCLUDED.last_message,
		    sender_id    = EXCLUDED.sender_id,
		    ts           = EXCLUDED.ts
	`, chatID, s.LastMessage, s.SenderID, s.Timestamp)
	return err
}
