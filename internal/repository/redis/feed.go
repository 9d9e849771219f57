package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	blockFor    = 5 * time.Second
	replayBatch = 500
)

// Subscribe replays the stream with XRANGE and follows it with XREAD.
func (s *Store) Subscribe(ctx context.Context, chatID string) (repository.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		out:    make(chan domain.RawMessage),
		cancel: cancel,
		msgs:   &MessageRepository{rdb: s.rdb},
		rdb:    s.rdb,
		chatID: chatID,
	}
	go sub.run(ctx)
	return sub, nil
}

type subscription struct {
	out    chan domain.RawMessage
	cancel context.CancelFunc
	msgs   *MessageRepository
	rdb    *redis.Client
	chatID string

	mu  sync.Mutex
	err error
}

func (s *subscription) Events() <-chan domain.RawMessage { return s.out }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.cancel()
	return nil
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)
	defer s.cancel()

	err := s.follow(ctx)
	if ctx.Err() != nil {
		err = nil
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *subscription) deliver(ctx context.Context, entries []redis.XMessage) (string, error) {
	var last string
	for _, e := range entries {
		last = e.ID
		id, _ := e.Values["id"].(string)
		m, err := s.msgs.get(ctx, s.chatID, id)
		if errors.Is(err, repository.ErrNotFound) {
			// dangling stream entry, pass an empty record so it is dropped downstream
			m = domain.RawMessage{ID: id}
		} else if err != nil && !errors.Is(err, domain.ErrMalformedRecord) {
			return last, err
		}
		select {
		case s.out <- m:
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
	return last, nil
}

func (s *subscription) follow(ctx context.Context) error {
	stream := feedKey(s.chatID)
	last := "0-0"

	start := "-"
	for {
		entries, err := s.rdb.XRangeN(ctx, stream, start, "+", replayBatch).Result()
		if err != nil {
			return fmt.Errorf("xrange: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		if last, err = s.deliver(ctx, entries); err != nil {
			return err
		}
		if len(entries) < replayBatch {
			break
		}
		start = "(" + last
	}

	for {
		res, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, last},
			Block:   blockFor,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("xread: %w", err)
		}
		for _, st := range res {
			next, err := s.deliver(ctx, st.Messages)
			if next != "" {
				last = next
			}
			if err != nil {
				return err
			}
		}
	}
}
