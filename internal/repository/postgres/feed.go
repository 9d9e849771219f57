package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Subscribe holds one pooled connection for the lifetime of the
// subscription. LISTEN is issued before the history query so no append
// falls between replay and live delivery.
func (s *Store) Subscribe(ctx context.Context, chatID string) (repository.Subscription, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{notifyChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		out:    make(chan domain.RawMessage),
		cancel: cancel,
	}
	go sub.run(ctx, conn, chatID)
	return sub, nil
}

type subscription struct {
	out    chan domain.RawMessage
	cancel context.CancelFunc

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

func (s *subscription) run(ctx context.Context, conn *pgxpool.Conn, chatID string) {
	defer close(s.out)
	defer s.cancel()

	err := s.follow(ctx, conn, chatID)
	if ctx.Err() != nil {
		err = nil
	}

	if err != nil {
		// the connection state is unknown, do not return it to the pool as is
		_ = conn.Conn().Close(context.Background())
	} else {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, uerr := conn.Exec(cctx, "UNLISTEN *"); uerr != nil {
			_ = conn.Conn().Close(cctx)
		}
		cancel()
	}
	conn.Release()

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *subscription) follow(ctx context.Context, conn *pgxpool.Conn, chatID string) error {
	var seq int64
	deliver := func() error {
		batch, next, err := after(ctx, conn, chatID, seq)
		if err != nil {
			return fmt.Errorf("query feed: %w", err)
		}
		seq = next
		for _, m := range batch {
			select {
			case s.out <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	if err := deliver(); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait notification: %w", err)
		}
		note, err := parseNotification(n.Payload)
		if err != nil || note.ChatID != chatID {
			continue
		}
		if err := deliver(); err != nil {
			return err
		}
	}
}
