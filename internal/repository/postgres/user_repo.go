package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func (r *UserRepository) AddChatroom(ctx context.Context, userID, chatID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_chatrooms (user_id, chat_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, chatID)
	return err
}

func (r *UserRepository) Chatrooms(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT chat_id FROM user_chatrooms WHERE user_id = $1 ORDER BY chat_id
	`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *UserRepository) Language(ctx context.Context, userID string) (string, error) {
	var lang *string
	err := r.db.QueryRow(ctx, `SELECT language FROM users WHERE id = $1`, userID).Scan(&lang)
	if err != nil {
		return "", notFound(err)
	}
	if lang == nil || *lang == "" {
		return "", repository.ErrNotFound
	}
	return *lang, nil
}

func (r *UserRepository) SetLanguage(ctx context.Context, userID, lang string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, language) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET language = EXCLUDED.language
	`, userID, lang)
	return err
}

func (r *UserRepository) PushToken(ctx context.Context, userID string) (string, error) {
	var tok *string
	err := r.db.QueryRow(ctx, `SELECT push_token FROM users WHERE id = $1`, userID).Scan(&tok)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", nil
	}
	return *tok, nil
}

func (r *UserRepository) SetPushToken(ctx context.Context, userID, token string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, push_token) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET push_token = EXCLUDED.push_token
	`, userID, token)
	return err
}
