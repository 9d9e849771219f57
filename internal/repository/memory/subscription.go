package memory

import (
	"context"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// subscription buffers records without bound so a slow reader never blocks
// writers holding the store lock.
type subscription struct {
	out  chan domain.RawMessage
	wake chan struct{}
	done chan struct{}

	mu    sync.Mutex
	queue []domain.RawMessage
	err   error

	once   sync.Once
	onStop func()
}

func newSubscription() *subscription {
	return &subscription{
		out:  make(chan domain.RawMessage),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscription) Events() <-chan domain.RawMessage { return s.out }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.stop(nil)
	return nil
}

func (s *subscription) push(m domain.RawMessage) {
	s.mu.Lock()
	s.queue = append(s.queue, m)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) stop(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		if s.onStop != nil {
			s.onStop()
		}
	})
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, m := range batch {
			select {
			case s.out <- m:
			case <-s.done:
				return
			case <-ctx.Done():
				s.stop(nil)
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		case <-ctx.Done():
			s.stop(nil)
			return
		}
	}
}
