package domain

import (
	"fmt"
	"maps"
	"strings"
)

// OriginalKey is the translations entry holding the as-sent text.
const OriginalKey = "original"

// Message is the locally materialized view of one feed record for a viewer.
type Message struct {
	ID             string `json:"id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	CreatedAt      int64  `json:"created_at"` // epoch millis, set by the sender
	OriginalText   string `json:"original_text"`
	ResolvedText   string `json:"text"`
	TranslatedFrom string `json:"translated_from,omitempty"`
	Pending        bool   `json:"pending,omitempty"`
}

// RawMessage is a record as it lives in the remote store.
type RawMessage struct {
	ID             string            `json:"id"`
	SenderID       string            `json:"senderId"`
	SenderName     string            `json:"senderName"`
	Timestamp      int64             `json:"timestamp"`
	Message        string            `json:"message"`
	Translations   map[string]string `json:"translations"`
	DetectedSource string            `json:"detectedSource,omitempty"`
}

// NewRawMessage builds the record appended by the send path.
func NewRawMessage(id string, sender Viewer, text string, ts int64) RawMessage {
	return RawMessage{
		ID:           id,
		SenderID:     sender.ID,
		SenderName:   sender.Name,
		Timestamp:    ts,
		Message:      text,
		Translations: map[string]string{OriginalKey: text},
	}
}

// Original returns translations.original, falling back to the message field.
func (r RawMessage) Original() string {
	if s := r.Translations[OriginalKey]; s != "" {
		return s
	}
	return r.Message
}

// Translation returns the cached translation for lang, if any.
func (r RawMessage) Translation(lang string) (string, bool) {
	if lang == "" || lang == OriginalKey {
		return "", false
	}
	s, ok := r.Translations[lang]
	return s, ok && s != ""
}

func (r RawMessage) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	case strings.TrimSpace(r.SenderID) == "":
		return fmt.Errorf("%w: missing senderId", ErrMalformedRecord)
	case r.Timestamp <= 0:
		return fmt.Errorf("%w: missing timestamp", ErrMalformedRecord)
	case r.Original() == "":
		return fmt.Errorf("%w: missing message", ErrMalformedRecord)
	}
	return nil
}

// Clone deep-copies the translations map.
func (r RawMessage) Clone() RawMessage {
	r.Translations = maps.Clone(r.Translations)
	return r
}

// ToMessage derives the local message with the original text as a placeholder.
func (r RawMessage) ToMessage() Message {
	return Message{
		ID:           r.ID,
		SenderID:     r.SenderID,
		SenderName:   r.SenderName,
		CreatedAt:    r.Timestamp,
		OriginalText: r.Original(),
		ResolvedText: r.Original(),
	}
}
