package ws

import (
	"sync/atomic"
	"testing"
)

type fakeConn struct {
	id     string
	closed atomic.Bool
}

func (f *fakeConn) Send(Message) error { return nil }
func (f *fakeConn) Close() error       { f.closed.Store(true); return nil }
func (f *fakeConn) UserID() string     { return f.id }

func TestHub_CountAndCloseAll(t *testing.T) {
	h := NewHub()
	a, b := &fakeConn{id: "alice"}, &fakeConn{id: "bob"}
	h.Add(a)
	h.Add(b)
	if n := h.Count(); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	h.Remove(a)
	if n := h.Count(); n != 1 {
		t.Fatalf("count after remove = %d, want 1", n)
	}

	h.CloseAll()
	if n := h.Count(); n != 0 {
		t.Fatalf("count after CloseAll = %d, want 0", n)
	}
	if !b.closed.Load() || a.closed.Load() {
		t.Fatalf("CloseAll must close only registered sessions: alice=%v bob=%v", a.closed.Load(), b.closed.Load())
	}
}
