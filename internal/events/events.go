// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/internal/metrics"

	"github.com/segmentio/kafka-go"
)

const TopicMessagesCreated = "messages.created"

type MessageCreated struct {
	ChatID     string   `json:"chat_id"`
	MessageID  string   `json:"message_id"`
	SenderID   string   `json:"sender_id"`
	Timestamp  int64    `json:"timestamp"`
	Recipients []string `json:"recipients,omitempty"`
}

type Publisher interface {
	MessageCreated(ctx context.Context, ev MessageCreated) error
	Close() error
}

type KafkaPublisher struct {
	w       *kafka.Writer
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*KafkaPublisher)

func WithLogger(l *slog.Logger) Option {
	return func(p *KafkaPublisher) { p.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *KafkaPublisher) { p.metrics = m }
}

// NewKafkaPublisher writes asynchronously: MessageCreated returns once the
// event is queued, and broker failures are reported through the logger and
// the events_published_total counter.
func NewKafkaPublisher(brokers []string, topic string, opts ...Option) *KafkaPublisher {
	if topic == "" {
		topic = TopicMessagesCreated
	}
	p := &KafkaPublisher{log: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.completed,
	}
	return p
}

func (p *KafkaPublisher) completed(msgs []kafka.Message, err error) {
	if err == nil {
		p.metrics.EventsPublished("delivered", len(msgs))
		return
	}
	p.metrics.EventsPublished("failed", len(msgs))
	chats := make([]string, 0, len(msgs))
	for _, m := range msgs {
		chats = append(chats, string(m.Key))
	}
	p.log.Warn("events: delivery failed", "topic", p.w.Topic, "count", len(msgs), "chats", chats, "err", err)
}

func (p *KafkaPublisher) MessageCreated(ctx context.Context, ev MessageCreated) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// encode keys by chat so a conversation stays on one partition.
func encode(ev MessageCreated) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.ChatID),
		Value: value,
		Time:  time.Now(),
	}, nil
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) MessageCreated(context.Context, MessageCreated) error { return nil }
func (Nop) Close() error                                         { return nil }
