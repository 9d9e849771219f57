// Package ingest materializes one conversation feed into an ordered,
// translated message list for a single viewer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/repository"
	"github.com/cwrk-planet/chat-service/internal/timeline"
	"github.com/cwrk-planet/chat-service/internal/translate"
)

var ErrClosed = errors.New("ingestor closed")

type Resolver interface {
	Cached(raw domain.RawMessage, viewer domain.Viewer) (translate.Resolution, bool)
	Resolve(ctx context.Context, chatID string, raw domain.RawMessage, viewer domain.Viewer) (translate.Resolution, error)
}

// ErrorHandler receives feed errors that ended a subscription.
type ErrorHandler func(chatID string, err error)

type Ingestor struct {
	feed     repository.Feed
	resolver Resolver
	viewer   domain.Viewer

	log     *slog.Logger
	metrics *metrics.Metrics
	onError ErrorHandler

	mu      sync.Mutex
	state   timeline.State
	gen     uint64
	cancel  context.CancelFunc
	sub     repository.Subscription
	closed  bool
	updates chan timeline.State
}

type Option func(*Ingestor)

func WithLogger(l *slog.Logger) Option {
	return func(i *Ingestor) { i.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(i *Ingestor) { i.onError = h }
}

func New(feed repository.Feed, resolver Resolver, viewer domain.Viewer, opts ...Option) *Ingestor {
	i := &Ingestor{
		feed:     feed,
		resolver: resolver,
		viewer:   viewer,
		log:      slog.Default(),
		updates:  make(chan timeline.State, 1),
	}
	for _, o := range opts {
		o(i)
	}
	i.log = i.log.With("viewer", viewer.ID)
	return i
}

// Open drops the current view and subscription and starts following chatID.
// An empty chatID leaves the ingestor idle. A subscription error is returned
// and leaves the view empty.
func (i *Ingestor) Open(ctx context.Context, chatID string) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}
	gen := i.reset(chatID)
	i.mu.Unlock()

	if chatID == "" {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := i.feed.Subscribe(subCtx, chatID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", chatID, err)
	}

	i.mu.Lock()
	if i.gen != gen {
		// a newer Open or Close won
		i.mu.Unlock()
		cancel()
		_ = sub.Close()
		return nil
	}
	i.cancel, i.sub = cancel, sub
	i.mu.Unlock()

	go i.consume(subCtx, gen, chatID, sub)
	return nil
}

// Close stops the subscription. Translations in flight still finish their
// remote writes; their results are discarded.
func (i *Ingestor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	i.reset("")
	return nil
}

// reset must be called with mu held.
func (i *Ingestor) reset(chatID string) uint64 {
	if i.cancel != nil {
		i.cancel()
		_ = i.sub.Close()
		i.cancel, i.sub = nil, nil
	}
	i.gen++
	i.apply(timeline.Reset{ChatID: chatID, Gen: i.gen})
	return i.gen
}

// AppendLocal inserts an optimistic message into the current view. It is
// confirmed when the feed delivers a record with the same ID.
func (i *Ingestor) AppendLocal(msg domain.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state.ChatID == "" {
		return domain.ErrNoActiveChat
	}
	msg.Pending = true
	if msg.ResolvedText == "" {
		msg.ResolvedText = msg.OriginalText
	}
	i.apply(timeline.Add{Gen: i.gen, Message: msg})
	return nil
}

func (i *Ingestor) Messages() []domain.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.state.Messages)
}

func (i *Ingestor) ChatID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.ChatID
}

func (i *Ingestor) State() timeline.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.Clone()
}

// Updates delivers the latest state after every change. Intermediate states
// may be skipped when the reader is slow.
func (i *Ingestor) Updates() <-chan timeline.State {
	return i.updates
}

func (i *Ingestor) dispatch(op timeline.Op) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.apply(op)
}

// apply must be called with mu held. Apply never mutates its input, so the
// published state can be shared.
func (i *Ingestor) apply(op timeline.Op) bool {
	next, changed := timeline.Apply(i.state, op)
	if !changed {
		return false
	}
	i.state = next

	select {
	case i.updates <- next:
	default:
		select {
		case <-i.updates:
		default:
		}
		i.updates <- next
	}
	return true
}

func (i *Ingestor) consume(ctx context.Context, gen uint64, chatID string, sub repository.Subscription) {
	for raw := range sub.Events() {
		i.ingest(ctx, gen, chatID, raw)
	}

	if ctx.Err() != nil {
		return
	}
	err := sub.Err()
	if err == nil {
		err = repository.ErrFeedClosed
	}
	i.metrics.FeedError()
	i.log.Warn("ingest: feed ended", "chat", chatID, "err", err)
	if i.onError != nil {
		i.onError(chatID, err)
	}
}

func (i *Ingestor) ingest(ctx context.Context, gen uint64, chatID string, raw domain.RawMessage) {
	if err := raw.Validate(); err != nil {
		i.metrics.FeedEvent("malformed")
		i.log.Debug("ingest: dropped record", "chat", chatID, "id", raw.ID, "err", err)
		return
	}

	msg := raw.ToMessage()
	res, resolved := i.resolver.Cached(raw, i.viewer)
	if resolved {
		msg.ResolvedText, msg.TranslatedFrom = res.Text, res.TranslatedFrom
	}

	if !i.dispatch(timeline.Add{Gen: gen, Message: msg}) {
		i.metrics.FeedEvent("duplicate")
		return
	}
	i.metrics.FeedEvent("applied")
	if resolved {
		return
	}

	go i.translate(context.WithoutCancel(ctx), gen, chatID, raw)
}

func (i *Ingestor) translate(ctx context.Context, gen uint64, chatID string, raw domain.RawMessage) {
	res, err := i.resolver.Resolve(ctx, chatID, raw, i.viewer)
	if err != nil {
		i.log.Warn("ingest: translation failed, showing original", "chat", chatID, "id", raw.ID, "err", err)
	}
	i.dispatch(timeline.Resolve{Gen: gen, ID: raw.ID, Text: res.Text, TranslatedFrom: res.TranslatedFrom})
}
