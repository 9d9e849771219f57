package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

type notification struct {
	ChatID string `json:"chat_id"`
	ID     string `json:"id"`
}

func parseNotification(payload string) (notification, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return n, fmt.Errorf("notification payload: %w", err)
	}
	if n.ChatID == "" {
		return n, fmt.Errorf("notification payload: missing chat_id")
	}
	return n, nil
}

// Append inserts the record and announces it. A record with a known ID is
// left untouched.
func (r *MessageRepository) Append(ctx context.Context, chatID string, msg domain.RawMessage) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return appendTx(ctx, tx, chatID, msg)
	})
}

// appendTx must run inside a transaction. Appends to one chat are serialized
// by a transaction-scoped advisory lock, so seq values of a chat become
// visible in commit order and the feed can follow them by position.
func appendTx(ctx context.Context, tx pgx.Tx, chatID string, msg domain.RawMessage) error {
	translations := msg.Translations
	if translations == nil {
		translations = map[string]string{domain.OriginalKey: msg.Message}
	}
	payload, err := json.Marshal(notification{ChatID: chatID, ID: msg.ID})
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, chatID); err != nil {
		return fmt.Errorf("lock chat: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO messages (chat_id, id, sender_id, sender_name, body, ts, translations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chat_id, id) DO NOTHING
	`, chatID, msg.ID, msg.SenderID, msg.SenderName, msg.Message, msg.Timestamp, translations)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (r *MessageRepository) MergeTranslation(ctx context.Context, chatID, msgID, lang, text string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET translations = translations || jsonb_build_object($3::text, $4::text)
		WHERE chat_id = $1 AND id = $2
	`, chatID, msgID, lang, text)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) SetDetectedSource(ctx context.Context, chatID, msgID, lang string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET detected_source = COALESCE(detected_source, $3)
		WHERE chat_id = $1 AND id = $2
	`, chatID, msgID, lang)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

const selectMessages = `
	SELECT seq, id, sender_id, sender_name, body, ts, translations, COALESCE(detected_source, '')
	FROM messages
	WHERE chat_id = $1 AND seq > $2
	ORDER BY seq
`

// after returns the records of chatID appended after seq, in append order.
func after(ctx context.Context, q querier, chatID string, seq int64) ([]domain.RawMessage, int64, error) {
	rows, err := q.Query(ctx, selectMessages, chatID, seq)
	if err != nil {
		return nil, seq, err
	}
	defer rows.Close()

	var out []domain.RawMessage
	for rows.Next() {
		var m domain.RawMessage
		if err := rows.Scan(&seq, &m.ID, &m.SenderID, &m.SenderName, &m.Message, &m.Timestamp, &m.Translations, &m.DetectedSource); err != nil {
			return nil, seq, err
		}
		out = append(out, m)
	}
	return out, seq, rows.Err()
}
