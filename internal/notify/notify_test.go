package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type tokens map[string]string

func (t tokens) PushToken(_ context.Context, userID string) (string, error) {
	if userID == "broken" {
		return "", errors.New("db down")
	}
	return t[userID], nil
}

type recorder struct {
	mu    sync.Mutex
	sent  []Push
	fails bool
}

func (r *recorder) Send(_ context.Context, p Push) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails {
		return errors.New("unreachable")
	}
	r.sent = append(r.sent, p)
	return nil
}

func TestDispatcher_SendsOnlyWithToken(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, tokens{"bob": "ExponentPushToken[abc]"}, nil, nil)

	d.Notify("bob", "Alice", "hi")
	d.Notify("carol", "Alice", "hi")
	d.Notify("broken", "Alice", "hi")
	d.Wait()

	if len(rec.sent) != 1 {
		t.Fatalf("expected 1 push, got %d", len(rec.sent))
	}
	p := rec.sent[0]
	if p.To != "ExponentPushToken[abc]" || p.Title != "Alice" || p.Body != "hi" || p.Sound != "default" || !p.DisplayInForeground {
		t.Fatalf("unexpected push: %+v", p)
	}
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	d := NewDispatcher(&recorder{fails: true}, tokens{"bob": "tok"}, nil, nil)
	d.Notify("bob", "Alice", "hi")
	d.Wait()
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.Notify("bob", "Alice", "hi")
	d.Wait()
}

func TestExpoClient_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	c := NewExpoClient(srv.URL, srv.Client())
	if err := c.Send(context.Background(), Push{To: "tok", Title: "Alice", Body: "hi", Sound: "default", DisplayInForeground: true}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["to"] != "tok" || got["_displayInForeground"] != true || got["title"] != "Alice" {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestExpoClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewExpoClient(srv.URL, nil).Send(context.Background(), Push{To: "tok"}); err == nil {
		t.Fatal("expected error")
	}
}
