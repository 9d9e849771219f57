// Package postgres keeps the conversation feed in PostgreSQL. New records
// are announced with NOTIFY; subscribers LISTEN on a dedicated connection.
package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "chat_messages"

// querier covers both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Messages() repository.MessageRepository { return &MessageRepository{db: s.pool} }
func (s *Store) Chats() repository.ChatRepository       { return &ChatRepository{db: s.pool} }
func (s *Store) Users() repository.UserRepository       { return &UserRepository{db: s.pool} }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
