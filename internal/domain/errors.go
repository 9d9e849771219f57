package domain

import "errors"

var (
	ErrChatNotFound     = errors.New("chat not found")
	ErrEmptyMessage     = errors.New("empty message")
	ErrMessageTooLong   = errors.New("message too long")
	ErrMissingSender    = errors.New("missing sender")
	ErrMalformedRecord  = errors.New("malformed message record")
	ErrUnknownLanguage  = errors.New("unknown language")
	ErrNoActiveChat     = errors.New("no active chat")
	ErrTranslateFailure = errors.New("translation failed")
)
