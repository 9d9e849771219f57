// Package memory is a process-local backend. It serves development setups
// and tests; data is lost on restart.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"
)

type user struct {
	language  string
	pushToken string
	chatrooms map[string]struct{}
}

type Store struct {
	mu       sync.Mutex
	messages map[string][]domain.RawMessage // chatID -> records in append order
	chats    map[string]*domain.Chat
	users    map[string]*user
	subs     map[string]map[*subscription]struct{}
}

func New() *Store {
	return &Store{
		messages: make(map[string][]domain.RawMessage),
		chats:    make(map[string]*domain.Chat),
		users:    make(map[string]*user),
		subs:     make(map[string]map[*subscription]struct{}),
	}
}

func (s *Store) Messages() repository.MessageRepository { return messageRepo{s} }
func (s *Store) Chats() repository.ChatRepository       { return chatRepo{s} }
func (s *Store) Users() repository.UserRepository       { return userRepo{s} }

func (s *Store) Close() error {
	s.mu.Lock()
	all := s.subs
	s.subs = make(map[string]map[*subscription]struct{})
	s.mu.Unlock()

	for _, set := range all {
		for sub := range set {
			sub.stop(repository.ErrFeedClosed)
		}
	}
	return nil
}

// Subscribe replays the conversation and then follows new appends.
func (s *Store) Subscribe(ctx context.Context, chatID string) (repository.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := newSubscription()
	sub.onStop = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.subs[chatID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(s.subs, chatID)
			}
		}
	}

	s.mu.Lock()
	for _, m := range s.messages[chatID] {
		sub.push(m.Clone())
	}
	set, ok := s.subs[chatID]
	if !ok {
		set = make(map[*subscription]struct{})
		s.subs[chatID] = set
	}
	set[sub] = struct{}{}
	s.mu.Unlock()

	go sub.run(ctx)

	return sub, nil
}

// Inject delivers a raw record to current subscribers without storing it.
// Used to simulate records written by other clients in a bad shape.
func (s *Store) Inject(chatID string, raw domain.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[chatID] {
		sub.push(raw.Clone())
	}
}

// Fail ends every subscription on chatID with err.
func (s *Store) Fail(chatID string, err error) {
	s.mu.Lock()
	set := s.subs[chatID]
	delete(s.subs, chatID)
	s.mu.Unlock()

	for sub := range set {
		sub.stop(err)
	}
}

// Record returns a copy of the stored record.
func (s *Store) Record(chatID, msgID string) (domain.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[chatID] {
		if m.ID == msgID {
			return m.Clone(), true
		}
	}
	return domain.RawMessage{}, false
}

type messageRepo struct{ s *Store }

func (r messageRepo) Append(ctx context.Context, chatID string, msg domain.RawMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, m := range r.s.messages[chatID] {
		if m.ID == msg.ID {
			return nil
		}
	}
	msg = msg.Clone()
	r.s.messages[chatID] = append(r.s.messages[chatID], msg)
	for sub := range r.s.subs[chatID] {
		sub.push(msg.Clone())
	}
	return nil
}

func (r messageRepo) update(chatID, msgID string, fn func(*domain.RawMessage)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	list := r.s.messages[chatID]
	i := slices.IndexFunc(list, func(m domain.RawMessage) bool { return m.ID == msgID })
	if i < 0 {
		return repository.ErrNotFound
	}
	fn(&list[i])
	return nil
}

func (r messageRepo) MergeTranslation(_ context.Context, chatID, msgID, lang, text string) error {
	return r.update(chatID, msgID, func(m *domain.RawMessage) {
		if m.Translations == nil {
			m.Translations = make(map[string]string)
		}
		m.Translations[lang] = text
	})
}

func (r messageRepo) SetDetectedSource(_ context.Context, chatID, msgID, lang string) error {
	return r.update(chatID, msgID, func(m *domain.RawMessage) {
		if m.DetectedSource == "" {
			m.DetectedSource = lang
		}
	})
}

type chatRepo struct{ s *Store }

func (r chatRepo) Get(_ context.Context, chatID string) (*domain.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.chats[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	out.Members = maps.Clone(c.Members)
	return &out, nil
}

func (r chatRepo) chat(chatID string) *domain.Chat {
	c, ok := r.s.chats[chatID]
	if !ok {
		c = &domain.Chat{ID: chatID, Members: make(map[string]string)}
		r.s.chats[chatID] = c
	}
	return c
}

func (r chatRepo) MergeMembers(_ context.Context, chatID string, members map[string]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	maps.Copy(r.chat(chatID).Members, members)
	return nil
}

func (r chatRepo) UpdateSummary(_ context.Context, chatID string, sum domain.ChatSummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := r.chat(chatID)
	c.LastMessage = sum.LastMessage
	c.SenderID = sum.SenderID
	c.Timestamp = sum.Timestamp
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) user(userID string) *user {
	u, ok := r.s.users[userID]
	if !ok {
		u = &user{chatrooms: make(map[string]struct{})}
		r.s.users[userID] = u
	}
	return u
}

func (r userRepo) AddChatroom(_ context.Context, userID, chatID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.user(userID).chatrooms[chatID] = struct{}{}
	return nil
}

func (r userRepo) Chatrooms(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	out := slices.Collect(maps.Keys(u.chatrooms))
	slices.Sort(out)
	return out, nil
}

func (r userRepo) Language(_ context.Context, userID string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok || u.language == "" {
		return "", repository.ErrNotFound
	}
	return u.language, nil
}

func (r userRepo) SetLanguage(_ context.Context, userID, lang string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.user(userID).language = lang
	return nil
}

func (r userRepo) PushToken(_ context.Context, userID string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u, ok := r.s.users[userID]; ok {
		return u.pushToken, nil
	}
	return "", nil
}

func (r userRepo) SetPushToken(_ context.Context, userID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.user(userID).pushToken = token
	return nil
}
