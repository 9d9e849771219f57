package translate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository/memory"
)

type fakeTranslator struct {
	calls   atomic.Int32
	out     Translation
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeTranslator) Translate(ctx context.Context, text, target string) (Translation, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	return f.out, f.err
}

var (
	alice = domain.Viewer{ID: "alice", Name: "Alice", Language: "en"}
	bob   = domain.Viewer{ID: "bob", Name: "Bob", Language: "es"}
)

func seed(t *testing.T, s *memory.Store, raw domain.RawMessage) {
	t.Helper()
	if err := s.Messages().Append(context.Background(), "c1", raw); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestResolve_OwnMessagePassthrough(t *testing.T) {
	s := memory.New()
	tr := &fakeTranslator{out: Translation{Text: "nope"}}
	r := NewResolver(tr, s.Messages())

	raw := domain.NewRawMessage("m1", alice, "Hello", 1)
	res, err := r.Resolve(context.Background(), "c1", raw, alice)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Text != "Hello" || res.TranslatedFrom != "" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if tr.calls.Load() != 0 {
		t.Fatalf("translator must not be called for own message")
	}
}

func TestResolve_TranslatesAndMemoizes(t *testing.T) {
	s := memory.New()
	raw := domain.NewRawMessage("m1", bob, "Hola", 1)
	seed(t, s, raw)

	tr := &fakeTranslator{out: Translation{Text: "Hello", DetectedSource: "es"}}
	r := NewResolver(tr, s.Messages())

	res, err := r.Resolve(context.Background(), "c1", raw, alice)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Text != "Hello" || res.TranslatedFrom != "es" {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	rec, _ := s.Record("c1", "m1")
	if rec.Translations["en"] != "Hello" || rec.Translations[domain.OriginalKey] != "Hola" {
		t.Fatalf("translation not merged: %v", rec.Translations)
	}
	if rec.DetectedSource != "es" {
		t.Fatalf("detected source not stored: %q", rec.DetectedSource)
	}

	// the stored record now serves the next viewer without a call
	res, err = r.Resolve(context.Background(), "c1", rec, alice)
	if err != nil || res.Text != "Hello" || res.TranslatedFrom != "es" {
		t.Fatalf("cached resolution: %+v, %v", res, err)
	}
	if n := tr.calls.Load(); n != 1 {
		t.Fatalf("expected 1 translator call, got %d", n)
	}
}

func TestCached(t *testing.T) {
	tests := []struct {
		name     string
		raw      domain.RawMessage
		viewer   domain.Viewer
		wantOK   bool
		wantText string
		wantFrom string
	}{
		{
			name:     "own message",
			raw:      domain.NewRawMessage("m", alice, "Hi", 1),
			viewer:   alice,
			wantOK:   true,
			wantText: "Hi",
		},
		{
			name: "cached translation",
			raw: domain.RawMessage{
				ID: "m", SenderID: "bob", Timestamp: 1, Message: "Hola",
				Translations:   map[string]string{domain.OriginalKey: "Hola", "en": "Hello"},
				DetectedSource: "es",
			},
			viewer:   alice,
			wantOK:   true,
			wantText: "Hello",
			wantFrom: "es",
		},
		{
			name: "cached equals original",
			raw: domain.RawMessage{
				ID: "m", SenderID: "bob", Timestamp: 1, Message: "OK",
				Translations:   map[string]string{domain.OriginalKey: "OK", "en": "OK"},
				DetectedSource: "en",
			},
			viewer:   alice,
			wantOK:   true,
			wantText: "OK",
		},
		{
			name:     "viewer without language",
			raw:      domain.NewRawMessage("m", bob, "Hola", 1),
			viewer:   domain.Viewer{ID: "carol"},
			wantOK:   true,
			wantText: "Hola",
		},
		{
			name:   "miss",
			raw:    domain.NewRawMessage("m", bob, "Hola", 1),
			viewer: alice,
		},
	}

	r := NewResolver(nil, memory.New().Messages())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := r.Cached(tt.raw, tt.viewer)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if res.Text != tt.wantText || res.TranslatedFrom != tt.wantFrom {
				t.Fatalf("got %+v, want text=%q from=%q", res, tt.wantText, tt.wantFrom)
			}
		})
	}
}

func TestResolve_FailureFallsBackToOriginal(t *testing.T) {
	s := memory.New()
	raw := domain.NewRawMessage("m1", bob, "Hola", 1)
	seed(t, s, raw)

	boom := errors.New("quota exceeded")
	r := NewResolver(&fakeTranslator{err: boom}, s.Messages())

	res, err := r.Resolve(context.Background(), "c1", raw, alice)
	if !errors.Is(err, domain.ErrTranslateFailure) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped translate failure, got %v", err)
	}
	if res.Text != "Hola" || res.TranslatedFrom != "" {
		t.Fatalf("expected original fallback, got %+v", res)
	}
	rec, _ := s.Record("c1", "m1")
	if _, ok := rec.Translations["en"]; ok {
		t.Fatal("failed translation must not be stored")
	}
}

func TestResolve_KeepsStoredDetectedSource(t *testing.T) {
	s := memory.New()
	raw := domain.NewRawMessage("m1", bob, "Olá", 1)
	raw.DetectedSource = "pt"
	seed(t, s, raw)

	r := NewResolver(&fakeTranslator{out: Translation{Text: "Hello", DetectedSource: "gl"}}, s.Messages())
	if _, err := r.Resolve(context.Background(), "c1", raw, alice); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	rec, _ := s.Record("c1", "m1")
	if rec.DetectedSource != "pt" {
		t.Fatalf("detected source overwritten: %q", rec.DetectedSource)
	}
}

func TestResolve_PersistFailureIsNotFatal(t *testing.T) {
	// the record was never stored, so both merges fail with ErrNotFound
	r := NewResolver(&fakeTranslator{out: Translation{Text: "Hello", DetectedSource: "es"}}, memory.New().Messages())

	res, err := r.Resolve(context.Background(), "c1", domain.NewRawMessage("m1", bob, "Hola", 1), alice)
	if err != nil {
		t.Fatalf("persist failure must not fail resolution: %v", err)
	}
	if res.Text != "Hello" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestResolve_NilTranslator(t *testing.T) {
	r := NewResolver(nil, memory.New().Messages())
	res, err := r.Resolve(context.Background(), "c1", domain.NewRawMessage("m1", bob, "Hola", 1), alice)
	if err != nil || res.Text != "Hola" || res.TranslatedFrom != "" {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestResolve_ConcurrentMissesShareOneCall(t *testing.T) {
	s := memory.New()
	raw := domain.NewRawMessage("m1", bob, "Hola", 1)
	seed(t, s, raw)

	tr := &fakeTranslator{
		out:     Translation{Text: "Hello", DetectedSource: "es"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := NewResolver(tr, s.Messages())

	const n = 8
	var wg sync.WaitGroup
	results := make([]Resolution, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Resolve(context.Background(), "c1", raw, alice)
		}(i)
	}

	<-tr.started
	time.Sleep(100 * time.Millisecond)
	close(tr.release)
	wg.Wait()

	if c := tr.calls.Load(); c != 1 {
		t.Fatalf("expected one translator call, got %d", c)
	}
	for i, res := range results {
		if res.Text != "Hello" {
			t.Fatalf("result %d: %+v", i, res)
		}
	}
}

func TestResolve_MaxInFlight(t *testing.T) {
	s := memory.New()
	tr := &fakeTranslator{
		out:     Translation{Text: "Hello", DetectedSource: "es"},
		release: make(chan struct{}),
	}
	r := NewResolver(tr, s.Messages(), WithMaxInFlight(3))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		raw := domain.NewRawMessage(string(rune('a'+i)), bob, "Hola", int64(i+1))
		seed(t, s, raw)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Resolve(context.Background(), "c1", raw, alice)
		}()
	}

	deadline := time.Now().Add(3 * time.Second)
	for tr.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if c := tr.calls.Load(); c != 3 {
		t.Fatalf("expected 3 calls in flight, got %d", c)
	}
	close(tr.release)
	wg.Wait()

	if c := tr.calls.Load(); c != n {
		t.Fatalf("expected %d calls, got %d", n, c)
	}
}
