package redis

import (
	"context"
	"errors"
	"slices"

	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/redis/go-redis/v9"
)

type UserRepository struct {
	rdb *redis.Client
}

func (r *UserRepository) AddChatroom(ctx context.Context, userID, chatID string) error {
	return r.rdb.SAdd(ctx, chatroomsKey(userID), chatID).Err()
}

func (r *UserRepository) Chatrooms(ctx context.Context, userID string) ([]string, error) {
	out, err := r.rdb.SMembers(ctx, chatroomsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

func (r *UserRepository) field(ctx context.Context, userID, name string) (string, error) {
	v, err := r.rdb.HGet(ctx, userKey(userID), name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *UserRepository) Language(ctx context.Context, userID string) (string, error) {
	lang, err := r.field(ctx, userID, "language")
	if err != nil {
		return "", err
	}
	if lang == "" {
		return "", repository.ErrNotFound
	}
	return lang, nil
}

func (r *UserRepository) SetLanguage(ctx context.Context, userID, lang string) error {
	return r.rdb.HSet(ctx, userKey(userID), "language", lang).Err()
}

func (r *UserRepository) PushToken(ctx context.Context, userID string) (string, error) {
	return r.field(ctx, userID, "push_token")
}

func (r *UserRepository) SetPushToken(ctx context.Context, userID, token string) error {
	return r.rdb.HSet(ctx, userKey(userID), "push_token", token).Err()
}
