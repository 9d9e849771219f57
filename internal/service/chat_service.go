package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/events"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/google/uuid"
)

const defaultMaxMessageLen = 4000

type Notifier interface {
	Notify(recipientID, senderName, text string)
}

type ChatService struct {
	messages repository.MessageRepository
	chats    repository.ChatRepository
	users    repository.UserRepository

	notifier Notifier
	events   events.Publisher
	log      *slog.Logger
	metrics  *metrics.Metrics

	maxLen int
	now    func() time.Time
}

type ChatOption func(*ChatService)

func WithNotifier(n Notifier) ChatOption {
	return func(s *ChatService) { s.notifier = n }
}

func WithPublisher(p events.Publisher) ChatOption {
	return func(s *ChatService) { s.events = p }
}

func WithLogger(l *slog.Logger) ChatOption {
	return func(s *ChatService) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) ChatOption {
	return func(s *ChatService) { s.metrics = m }
}

func WithMaxMessageLen(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

func NewChatService(store repository.Store, opts ...ChatOption) *ChatService {
	s := &ChatService{
		messages: store.Messages(),
		chats:    store.Chats(),
		users:    store.Users(),
		events:   events.Nop{},
		log:      slog.Default(),
		maxLen:   defaultMaxMessageLen,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type SendRequest struct {
	ChatID    string
	ID        string // client generated, optional
	Sender    domain.Viewer
	Contacts  []domain.Contact
	Text      string
	Timestamp int64 // epoch millis, optional
}

type SendResult struct {
	ChatID    string
	MessageID string
	Timestamp int64
}

func (s *ChatService) validate(req *SendRequest) error {
	req.Text = strings.TrimSpace(req.Text)
	switch {
	case strings.TrimSpace(req.Sender.ID) == "":
		return domain.ErrMissingSender
	case req.Text == "":
		return domain.ErrEmptyMessage
	case utf8.RuneCountInString(req.Text) > s.maxLen:
		return domain.ErrMessageTooLong
	}
	return nil
}

// Send appends a message to a chat, creating the chat when ChatID is empty.
// Recipients are notified and an event is published; failures of either
// are logged only.
func (s *ChatService) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := s.validate(&req); err != nil {
		return SendResult{}, err
	}

	if req.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return SendResult{}, fmt.Errorf("message id: %w", err)
		}
		req.ID = id.String()
	}
	if req.Timestamp <= 0 {
		req.Timestamp = s.now().UnixMilli()
	}

	chatID := req.ChatID
	if chatID == "" {
		var err error
		if chatID, err = s.createChat(ctx, req.Sender, req.Contacts); err != nil {
			return SendResult{}, err
		}
	}

	err := s.chats.UpdateSummary(ctx, chatID, domain.ChatSummary{
		LastMessage: req.Text,
		SenderID:    req.Sender.ID,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("update chat summary: %w", err)
	}
	if err := s.messages.Append(ctx, chatID, domain.NewRawMessage(req.ID, req.Sender, req.Text, req.Timestamp)); err != nil {
		return SendResult{}, fmt.Errorf("append message: %w", err)
	}
	s.metrics.Sent()

	recipients := s.recipients(ctx, chatID, req.Sender.ID, req.Contacts)
	if s.notifier != nil {
		for _, id := range recipients {
			s.notifier.Notify(id, req.Sender.Name, req.Text)
		}
	}

	err = s.events.MessageCreated(ctx, events.MessageCreated{
		ChatID:     chatID,
		MessageID:  req.ID,
		SenderID:   req.Sender.ID,
		Timestamp:  req.Timestamp,
		Recipients: recipients,
	})
	if err != nil {
		s.log.Warn("send: publish event failed", "chat", chatID, "msg", req.ID, "err", err)
	}

	return SendResult{ChatID: chatID, MessageID: req.ID, Timestamp: req.Timestamp}, nil
}

func (s *ChatService) createChat(ctx context.Context, sender domain.Viewer, contacts []domain.Contact) (string, error) {
	chatID := uuid.NewString()

	members := map[string]string{sender.ID: sender.Name}
	if err := s.users.AddChatroom(ctx, sender.ID, chatID); err != nil {
		return "", fmt.Errorf("add chatroom: %w", err)
	}
	for _, c := range contacts {
		if c.ID == "" {
			continue
		}
		if err := s.users.AddChatroom(ctx, c.ID, chatID); err != nil {
			return "", fmt.Errorf("add chatroom: %w", err)
		}
		members[c.ID] = c.Name
	}
	if err := s.chats.MergeMembers(ctx, chatID, members); err != nil {
		return "", fmt.Errorf("add members: %w", err)
	}
	return chatID, nil
}

// recipients are the contacts given by the sender, or every other chat
// member when none were given.
func (s *ChatService) recipients(ctx context.Context, chatID, senderID string, contacts []domain.Contact) []string {
	var out []string
	if len(contacts) > 0 {
		for _, c := range contacts {
			if c.ID != "" && c.ID != senderID {
				out = append(out, c.ID)
			}
		}
		return out
	}

	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		s.log.Debug("send: no members to notify", "chat", chatID, "err", err)
		return nil
	}
	for id := range chat.Members {
		if id != senderID {
			out = append(out, id)
		}
	}
	return out
}

func (s *ChatService) Chat(ctx context.Context, chatID string) (*domain.Chat, error) {
	c, err := s.chats.Get(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrChatNotFound
	}
	return c, err
}
