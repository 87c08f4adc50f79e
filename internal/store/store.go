package store

import (
	"context"
	"time"
)

// Message is a persisted chat message from a room broadcast.
type Message struct {
	ID        int64
	Room      string
	Sender    string
	Body      string
	CreatedAt time.Time
}

// MessageStore records room broadcasts for later inspection. Session and
// room state is deliberately not persisted; only the message log survives
// a restart.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, room string, limit int) ([]*Message, error)
	Close() error
}
