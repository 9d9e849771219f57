package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"
)

func next(t *testing.T, sub repository.Subscription) domain.RawMessage {
	t.Helper()
	select {
	case m, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription closed: %v", sub.Err())
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed event")
	}
	return domain.RawMessage{}
}

func TestSubscribe_ReplaysThenFollows(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := domain.Viewer{ID: "alice", Name: "Alice"}

	_ = s.Messages().Append(ctx, "c1", domain.NewRawMessage("m1", alice, "one", 1))
	_ = s.Messages().Append(ctx, "c1", domain.NewRawMessage("m2", alice, "two", 2))
	_ = s.Messages().Append(ctx, "other", domain.NewRawMessage("x", alice, "other chat", 3))

	sub, err := s.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if got := next(t, sub).ID; got != "m1" {
		t.Fatalf("expected m1, got %s", got)
	}
	if got := next(t, sub).ID; got != "m2" {
		t.Fatalf("expected m2, got %s", got)
	}

	_ = s.Messages().Append(ctx, "c1", domain.NewRawMessage("m3", alice, "three", 3))
	if got := next(t, sub); got.ID != "m3" || got.Original() != "three" {
		t.Fatalf("unexpected live event: %+v", got)
	}
}

func TestAppend_DuplicateIDIgnored(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := domain.Viewer{ID: "alice"}

	_ = s.Messages().Append(ctx, "c1", domain.NewRawMessage("m1", alice, "one", 1))
	_ = s.Messages().Append(ctx, "c1", domain.NewRawMessage("m1", alice, "changed", 1))

	rec, ok := s.Record("c1", "m1")
	if !ok || rec.Message != "one" {
		t.Fatalf("expected first write to win, got %+v", rec)
	}
}

func TestMergeTranslation_FieldLevel(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Messages().Append(ctx, "c1", domain.NewRawMessage("m1", domain.Viewer{ID: "a"}, "Hola", 1))

	_ = s.Messages().MergeTranslation(ctx, "c1", "m1", "en", "Hello")
	_ = s.Messages().MergeTranslation(ctx, "c1", "m1", "fr", "Bonjour")
	_ = s.Messages().SetDetectedSource(ctx, "c1", "m1", "es")
	_ = s.Messages().SetDetectedSource(ctx, "c1", "m1", "pt")

	rec, _ := s.Record("c1", "m1")
	if rec.Translations["en"] != "Hello" || rec.Translations["fr"] != "Bonjour" || rec.Translations[domain.OriginalKey] != "Hola" {
		t.Fatalf("translations not merged: %v", rec.Translations)
	}
	if rec.DetectedSource != "es" {
		t.Fatalf("detected source must be write-once, got %q", rec.DetectedSource)
	}

	if err := s.Messages().MergeTranslation(ctx, "c1", "nope", "en", "x"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFail_SurfacesError(t *testing.T) {
	s := New()
	sub, err := s.Subscribe(context.Background(), "c1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	boom := errors.New("connection reset")
	s.Fail("c1", boom)

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end")
	}
	if !errors.Is(sub.Err(), boom) {
		t.Fatalf("expected %v, got %v", boom, sub.Err())
	}
}

func TestSubscribe_ContextCancelEndsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()
	sub, _ := s.Subscribe(ctx, "c1")
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end")
	}
	if sub.Err() != nil {
		t.Fatalf("cancellation is not an error, got %v", sub.Err())
	}
}

func TestClose_EndsSubscriptionsWithFeedClosed(t *testing.T) {
	s := New()
	sub, _ := s.Subscribe(context.Background(), "c1")
	_ = s.Close()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end")
	}
	if !errors.Is(sub.Err(), repository.ErrFeedClosed) {
		t.Fatalf("expected ErrFeedClosed, got %v", sub.Err())
	}
}

func TestChatsAndUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.Chats().MergeMembers(ctx, "c1", map[string]string{"a": "Alice"})
	_ = s.Chats().MergeMembers(ctx, "c1", map[string]string{"b": "Bob"})
	_ = s.Chats().UpdateSummary(ctx, "c1", domain.ChatSummary{LastMessage: "hi", SenderID: "a", Timestamp: 5})

	c, err := s.Chats().Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if len(c.Members) != 2 || c.LastMessage != "hi" || c.Timestamp != 5 {
		t.Fatalf("unexpected chat: %+v", c)
	}
	if _, err := s.Chats().Get(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = s.Users().AddChatroom(ctx, "a", "c2")
	_ = s.Users().AddChatroom(ctx, "a", "c1")
	_ = s.Users().AddChatroom(ctx, "a", "c1")
	rooms, _ := s.Users().Chatrooms(ctx, "a")
	if len(rooms) != 2 || rooms[0] != "c1" || rooms[1] != "c2" {
		t.Fatalf("unexpected chatrooms: %v", rooms)
	}

	if _, err := s.Users().Language(ctx, "a"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unset language, got %v", err)
	}
	if tok, _ := s.Users().PushToken(ctx, "nobody"); tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
}
