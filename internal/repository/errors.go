package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrFeedClosed: подписка закончилась без ошибки, хотя ее никто не закрывал.
	ErrFeedClosed = errors.New("feed closed")
)
