package redis

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/redis/go-redis/v9"
)

type MessageRepository struct {
	rdb *redis.Client
}

// Append claims the record key first; a known ID is left untouched and not
// re-announced on the stream.
func (r *MessageRepository) Append(ctx context.Context, chatID string, msg domain.RawMessage) error {
	key := msgKey(chatID, msg.ID)
	created, err := r.rdb.HSetNX(ctx, key, "id", msg.ID).Result()
	if err != nil {
		return fmt.Errorf("claim message: %w", err)
	}
	if !created {
		return nil
	}

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, recordFields(msg))
		p.XAdd(ctx, &redis.XAddArgs{
			Stream: feedKey(chatID),
			Values: map[string]any{"id": msg.ID},
		})
		return nil
	})
	if err != nil {
		// отпускаем claim, чтобы повторная отправка с тем же id прошла
		_ = r.rdb.Del(context.WithoutCancel(ctx), key).Err()
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *MessageRepository) exists(ctx context.Context, key string) error {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) MergeTranslation(ctx context.Context, chatID, msgID, lang, text string) error {
	key := msgKey(chatID, msgID)
	if err := r.exists(ctx, key); err != nil {
		return err
	}
	return r.rdb.HSet(ctx, key, translationPrefix+lang, text).Err()
}

func (r *MessageRepository) SetDetectedSource(ctx context.Context, chatID, msgID, lang string) error {
	key := msgKey(chatID, msgID)
	if err := r.exists(ctx, key); err != nil {
		return err
	}
	return r.rdb.HSetNX(ctx, key, "detected_source", lang).Err()
}

func (r *MessageRepository) get(ctx context.Context, chatID, msgID string) (domain.RawMessage, error) {
	fields, err := r.rdb.HGetAll(ctx, msgKey(chatID, msgID)).Result()
	if err != nil {
		return domain.RawMessage{}, err
	}
	return parseRecord(fields)
}
