// Package redis keeps the conversation feed in Redis. Each conversation is
// a stream of message ids; the message record itself is a hash so that
// translations can be merged field by field.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/redis/go-redis/v9"
)

const translationPrefix = "tr:"

type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Second,
		// blocking XREAD needs a read timeout above the block interval
		ReadTimeout: blockFor + 2*time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func feedKey(chatID string) string      { return "chat:" + chatID + ":feed" }
func msgKey(chatID, id string) string   { return "msg:" + chatID + ":" + id }
func chatKey(chatID string) string      { return "chat:" + chatID }
func membersKey(chatID string) string   { return "chat:" + chatID + ":members" }
func userKey(userID string) string      { return "user:" + userID }
func chatroomsKey(userID string) string { return "user:" + userID + ":chatrooms" }

type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Messages() repository.MessageRepository { return &MessageRepository{rdb: s.rdb} }
func (s *Store) Chats() repository.ChatRepository       { return &ChatRepository{rdb: s.rdb} }
func (s *Store) Users() repository.UserRepository       { return &UserRepository{rdb: s.rdb} }

func (s *Store) Close() error {
	return s.rdb.Close()
}

// parseRecord builds a record from its hash fields.
func parseRecord(fields map[string]string) (domain.RawMessage, error) {
	if len(fields) == 0 {
		return domain.RawMessage{}, repository.ErrNotFound
	}
	m := domain.RawMessage{
		ID:             fields["id"],
		SenderID:       fields["sender_id"],
		SenderName:     fields["sender_name"],
		Message:        fields["message"],
		DetectedSource: fields["detected_source"],
		Translations:   make(map[string]string),
	}
	if ts := fields["timestamp"]; ts != "" {
		v, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return m, fmt.Errorf("%w: timestamp %q", domain.ErrMalformedRecord, ts)
		}
		m.Timestamp = v
	}
	for k, v := range fields {
		if lang, ok := strings.CutPrefix(k, translationPrefix); ok {
			m.Translations[lang] = v
		}
	}
	return m, nil
}

func recordFields(m domain.RawMessage) map[string]any {
	out := map[string]any{
		"id":          m.ID,
		"sender_id":   m.SenderID,
		"sender_name": m.SenderName,
		"message":     m.Message,
		"timestamp":   strconv.FormatInt(m.Timestamp, 10),
	}
	if m.DetectedSource != "" {
		out["detected_source"] = m.DetectedSource
	}
	for lang, text := range m.Translations {
		out[translationPrefix+lang] = text
	}
	if _, ok := m.Translations[domain.OriginalKey]; !ok {
		out[translationPrefix+domain.OriginalKey] = m.Message
	}
	return out
}
