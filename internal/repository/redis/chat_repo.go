package redis

import (
	"context"
	"strconv"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/redis/go-redis/v9"
)

type ChatRepository struct {
	rdb *redis.Client
}

func (r *ChatRepository) Get(ctx context.Context, chatID string) (*domain.Chat, error) {
	var (
		summary *redis.MapStringStringCmd
		members *redis.MapStringStringCmd
	)
	_, err := r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		summary = p.HGetAll(ctx, chatKey(chatID))
		members = p.HGetAll(ctx, membersKey(chatID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(summary.Val()) == 0 && len(members.Val()) == 0 {
		return nil, repository.ErrNotFound
	}

	s := summary.Val()
	ts, _ := strconv.ParseInt(s["timestamp"], 10, 64)
	return &domain.Chat{
		ID:          chatID,
		Members:     members.Val(),
		LastMessage: s["last_message"],
		SenderID:    s["sender_id"],
		Timestamp:   ts,
	}, nil
}

func (r *ChatRepository) MergeMembers(ctx context.Context, chatID string, members map[string]string) error {
	if len(members) == 0 {
		return nil
	}
	return r.rdb.HSet(ctx, membersKey(chatID), members).Err()
}

func (r *ChatRepository) UpdateSummary(ctx context.Context, chatID string, s domain.ChatSummary) error {
	return r.rdb.HSet(ctx, chatKey(chatID),
		"last_message", s.LastMessage,
		"sender_id", s.SenderID,
		"timestamp", strconv.FormatInt(s.Timestamp, 10),
	).Err()
}
