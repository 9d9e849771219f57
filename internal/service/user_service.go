package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/repository"
	"github.com/cwrk-planet/chat-service/internal/translate"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// SetLanguage stores the normalized language code and returns it.
func (s *UserService) SetLanguage(ctx context.Context, userID, lang string) (string, error) {
	code, err := translate.NormalizeLanguage(lang)
	if err != nil {
		return "", err
	}
	if err := s.users.SetLanguage(ctx, userID, code); err != nil {
		return "", err
	}
	return code, nil
}

// Language returns "" for users that never chose one.
func (s *UserService) Language(ctx context.Context, userID string) (string, error) {
	lang, err := s.users.Language(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	return lang, err
}

func (s *UserService) Chatrooms(ctx context.Context, userID string) ([]string, error) {
	rooms, err := s.users.Chatrooms(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []string{}
	}
	return rooms, nil
}

// SetPushToken registers the device token; an empty token unregisters.
func (s *UserService) SetPushToken(ctx context.Context, userID, token string) error {
	return s.users.SetPushToken(ctx, userID, strings.TrimSpace(token))
}
