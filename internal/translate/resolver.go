package translate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxInFlight = 8
)

type Resolver struct {
	tr      Translator
	msgs    repository.MessageRepository
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	group    singleflight.Group
	inFlight *semaphore.Weighted
}

type Option func(*Resolver)

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithTimeout bounds a translation call together with its persistence.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxInFlight caps concurrent translator calls across all viewers.
// Calls above the cap wait for a slot; the wait is not part of the timeout.
func WithMaxInFlight(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.inFlight = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewResolver builds a resolver. A nil Translator disables translation and
// every miss resolves to the original text.
func NewResolver(tr Translator, msgs repository.MessageRepository, opts ...Option) *Resolver {
	r := &Resolver{
		tr:      tr,
		msgs:    msgs,
		log:     slog.Default(),
		timeout: defaultTimeout,

		inFlight: semaphore.NewWeighted(defaultMaxInFlight),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func source(raw domain.RawMessage) string {
	if raw.Message != "" {
		return raw.Message
	}
	return raw.Original()
}

func provenance(text, src, detected string) string {
	if text == src {
		return ""
	}
	return detected
}

// Cached resolves without touching the network: the viewer's own messages,
// viewers without a language and memoized translations.
func (r *Resolver) Cached(raw domain.RawMessage, viewer domain.Viewer) (Resolution, bool) {
	if raw.SenderID == viewer.ID || viewer.Language == "" {
		return Resolution{Text: raw.Original()}, true
	}
	if text, ok := raw.Translation(viewer.Language); ok {
		return Resolution{Text: text, TranslatedFrom: provenance(text, source(raw), raw.DetectedSource)}, true
	}
	return Resolution{}, false
}

// Resolve returns the text viewer should see for raw. On a cache miss it
// calls the translator once, merges the result into the record and records
// the detected source language if none is stored. On failure the original
// text is returned together with the error.
func (r *Resolver) Resolve(ctx context.Context, chatID string, raw domain.RawMessage, viewer domain.Viewer) (Resolution, error) {
	if res, ok := r.Cached(raw, viewer); ok {
		if raw.SenderID == viewer.ID {
			r.metrics.Translation("own")
		} else {
			r.metrics.Translation("cached")
		}
		return res, nil
	}
	if r.tr == nil {
		return Resolution{Text: raw.Original()}, nil
	}

	key := chatID + "/" + raw.ID + "/" + viewer.Language
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.translate(ctx, chatID, raw, viewer.Language)
	})
	if err != nil {
		r.metrics.Translation("failed")
		return Resolution{Text: raw.Original()}, fmt.Errorf("%w: %w", domain.ErrTranslateFailure, err)
	}
	if shared {
		r.log.Debug("translate: shared result", "chat", chatID, "msg", raw.ID, "lang", viewer.Language)
	}
	return v.(Resolution), nil
}

func (r *Resolver) translate(ctx context.Context, chatID string, raw domain.RawMessage, lang string) (Resolution, error) {
	if err := r.inFlight.Acquire(ctx, 1); err != nil {
		return Resolution{}, err
	}
	defer r.inFlight.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	src := source(raw)
	tr, err := r.tr.Translate(ctx, src, lang)
	if err != nil {
		return Resolution{}, err
	}
	r.metrics.Translation("translated")

	if err := r.msgs.MergeTranslation(ctx, chatID, raw.ID, lang, tr.Text); err != nil {
		r.log.Warn("translate: persist translation failed", "chat", chatID, "msg", raw.ID, "lang", lang, "err", err)
	}
	detected := tr.DetectedSource
	if raw.DetectedSource == "" && detected != "" {
		if err := r.msgs.SetDetectedSource(ctx, chatID, raw.ID, detected); err != nil {
			r.log.Warn("translate: persist detected source failed", "chat", chatID, "msg", raw.ID, "err", err)
		}
	}
	if detected == "" {
		detected = raw.DetectedSource
	}

	return Resolution{Text: tr.Text, TranslatedFrom: provenance(tr.Text, src, detected)}, nil
}
