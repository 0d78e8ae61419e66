package chat

import (
	"time"
)

// RoomID is the string key of a room. A room exists only while connections are bound to it.
type RoomID string

// MessageID is assigned by the message store and strictly increases with insertion order.
type MessageID uint64

// Message is an immutable persisted chat message.
type Message struct {
	ID         MessageID
	RoomID     RoomID
	AuthorID   UserID
	AuthorName string
	Content    string
	Lang       string
	CreatedAt  time.Time
}

// ConnID identifies one accepted connection for its whole life.
type ConnID string
