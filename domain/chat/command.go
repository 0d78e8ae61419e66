package chat

import (
	"time"
)

// PostMessageCommand is a message that has been accepted for persistence but has no identifier yet.
type PostMessageCommand struct {
	Room       RoomID
	AuthorID   UserID
	AuthorName string
	Content    string
	Lang       string
	CreatedAt  time.Time
}

// GetMessageCommand selects a page of a room history, newest first.
// Cursor is an exclusive upper bound on message identifiers.
type GetMessageCommand struct {
	Room   RoomID
	Skip   int
	Limit  int
	Cursor *MessageID
}
