// Package timeline holds the ordered, per-conversation message view and the
// operations that mutate it.
package timeline

import (
	"fmt"
	"slices"
	"sort"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// State is one materialized conversation. Gen identifies the subscription
// that owns it; ops stamped with another Gen are ignored.
type State struct {
	ChatID   string           `json:"chat_id"`
	Gen      uint64           `json:"-"`
	Messages []domain.Message `json:"messages"`
}

func (s State) Clone() State {
	s.Messages = slices.Clone(s.Messages)
	return s
}

func (s State) Index(id string) int {
	return slices.IndexFunc(s.Messages, func(m domain.Message) bool { return m.ID == id })
}

// Op is the closed set of state transitions.
type Op interface {
	op()
}

// Reset discards the current view and starts a new one for ChatID.
type Reset struct {
	ChatID string
	Gen    uint64
}

// Add inserts a message in createdAt order. Re-adding a known ID only
// clears its Pending flag.
type Add struct {
	Gen     uint64
	Message domain.Message
}

// Resolve attaches the translated text to an already inserted message.
type Resolve struct {
	Gen            uint64
	ID             string
	Text           string
	TranslatedFrom string
}

func (Reset) op()   {}
func (Add) op()     {}
func (Resolve) op() {}

// Apply returns the next state and whether anything changed. The input
// state is never modified.
func Apply(s State, op Op) (State, bool) {
	switch op := op.(type) {
	case Reset:
		return State{ChatID: op.ChatID, Gen: op.Gen}, true
	case Add:
		if op.Gen != s.Gen {
			return s, false
		}
		if i := s.Index(op.Message.ID); i >= 0 {
			if !s.Messages[i].Pending || op.Message.Pending {
				return s, false
			}
			next := s.Clone()
			next.Messages[i].Pending = false
			return next, true
		}
		s.Messages = Insert(s.Messages, op.Message)
		return s, true
	case Resolve:
		if op.Gen != s.Gen {
			return s, false
		}
		i := s.Index(op.ID)
		if i < 0 {
			return s, false
		}
		cur := s.Messages[i]
		if cur.ResolvedText == op.Text && cur.TranslatedFrom == op.TranslatedFrom {
			return s, false
		}
		next := s.Clone()
		next.Messages[i].ResolvedText = op.Text
		next.Messages[i].TranslatedFrom = op.TranslatedFrom
		return next, true
	default:
		panic(fmt.Sprintf("timeline: unhandled op %T", op))
	}
}

// Insert returns a new slice with m placed before the first message whose
// CreatedAt is strictly greater. Equal timestamps keep arrival order.
func Insert(msgs []domain.Message, m domain.Message) []domain.Message {
	i := sort.Search(len(msgs), func(i int) bool { return msgs[i].CreatedAt > m.CreatedAt })

	out := make([]domain.Message, 0, len(msgs)+1)
	out = append(out, msgs[:i]...)
	out = append(out, m)
	return append(out, msgs[i:]...)
}
