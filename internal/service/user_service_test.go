package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository/memory"
)

func TestUserService_Language(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store.Users())
	ctx := context.Background()

	if lang, err := svc.Language(ctx, "alice"); err != nil || lang != "" {
		t.Fatalf("unset language: %q, %v", lang, err)
	}

	code, err := svc.SetLanguage(ctx, "alice", "Spanish")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if code != "es" {
		t.Fatalf("code = %q", code)
	}
	if lang, _ := svc.Language(ctx, "alice"); lang != "es" {
		t.Fatalf("stored language = %q", lang)
	}

	if _, err := svc.SetLanguage(ctx, "alice", "gibberishlang"); !errors.Is(err, domain.ErrUnknownLanguage) {
		t.Fatalf("expected ErrUnknownLanguage, got %v", err)
	}
}

func TestUserService_ChatroomsNeverNil(t *testing.T) {
	svc := NewUserService(memory.New().Users())
	rooms, err := svc.Chatrooms(context.Background(), "nobody")
	if err != nil || rooms == nil || len(rooms) != 0 {
		t.Fatalf("got %v, %v", rooms, err)
	}
}

func TestUserService_PushToken(t *testing.T) {
	store := memory.New()
	svc := NewUserService(store.Users())
	ctx := context.Background()

	_ = svc.SetPushToken(ctx, "bob", "  ExponentPushToken[x] ")
	if tok, _ := store.Users().PushToken(ctx, "bob"); tok != "ExponentPushToken[x]" {
		t.Fatalf("token = %q", tok)
	}
}
