package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/metrics"
)

// TokenSource looks up a recipient's device token; "" means none.
type TokenSource interface {
	PushToken(ctx context.Context, userID string) (string, error)
}

type Dispatcher struct {
	sender  Sender
	tokens  TokenSource
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(sender Sender, tokens TokenSource, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sender:  sender,
		tokens:  tokens,
		log:     log,
		metrics: m,
		timeout: 10 * time.Second,
	}
}

// Notify sends in the background and never reports failure to the caller.
func (d *Dispatcher) Notify(recipientID, senderName, text string) {
	if d == nil || d.sender == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		token, err := d.tokens.PushToken(ctx, recipientID)
		if err != nil {
			d.metrics.Push("failed")
			d.log.Warn("notify: token lookup failed", "recipient", recipientID, "err", err)
			return
		}
		if token == "" {
			d.metrics.Push("skipped")
			return
		}

		err = d.sender.Send(ctx, Push{
			To:                  token,
			Title:               senderName,
			Body:                text,
			Sound:               "default",
			DisplayInForeground: true,
		})
		if err != nil {
			d.metrics.Push("failed")
			d.log.Warn("notify: push failed", "recipient", recipientID, "err", err)
			return
		}
		d.metrics.Push("sent")
	}()
}

// Wait blocks until in-flight notifications finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
