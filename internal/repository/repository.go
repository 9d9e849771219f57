package repository

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Subscription is a live view of one conversation's append-only feed. The
// feed replays existing records first, then delivers new ones. Events is
// closed when the subscription ends; Err then reports why (nil on Close or
// context cancellation).
type Subscription interface {
	Events() <-chan domain.RawMessage
	Err() error
	Close() error
}

type Feed interface {
	Subscribe(ctx context.Context, chatID string) (Subscription, error)
}

// MessageRepository writes to the per-conversation message list. All
// updates are field-level merges.
type MessageRepository interface {
	Append(ctx context.Context, chatID string, msg domain.RawMessage) error
	MergeTranslation(ctx context.Context, chatID, msgID, lang, text string) error
	// SetDetectedSource stores the language only if none is recorded yet.
	SetDetectedSource(ctx context.Context, chatID, msgID, lang string) error
}

type ChatRepository interface {
	Get(ctx context.Context, chatID string) (*domain.Chat, error)
	MergeMembers(ctx context.Context, chatID string, members map[string]string) error
	UpdateSummary(ctx context.Context, chatID string, s domain.ChatSummary) error
}

type UserRepository interface {
	AddChatroom(ctx context.Context, userID, chatID string) error
	Chatrooms(ctx context.Context, userID string) ([]string, error)
	Language(ctx context.Context, userID string) (string, error)
	SetLanguage(ctx context.Context, userID, lang string) error
	// PushToken returns "" when the user has not registered a device.
	PushToken(ctx context.Context, userID string) (string, error)
	SetPushToken(ctx context.Context, userID, token string) error
}

// Store groups the repositories a backend provides.
type Store interface {
	Feed
	Messages() MessageRepository
	Chats() ChatRepository
	Users() UserRepository
	Close() error
}
