package chat

import "fmt"

// Kind tags an envelope on the wire.
type Kind string

const (
	KindMessage Kind = "message"
	KindJoin    Kind = "join"
	KindLeave   Kind = "leave"
)

// Envelope is the transient unit pushed to every connection of a room.
type Envelope struct {
	Kind     Kind   `json:"type"`
	Content  string `json:"content,omitempty"`
	RoomID   RoomID `json:"room_id"`
	UserID   UserID `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// MessageEnvelope wraps a persisted message.
func MessageEnvelope(m Message) Envelope {
	return Envelope{
		Kind:     KindMessage,
		Content:  m.Content,
		RoomID:   m.RoomID,
		UserID:   m.AuthorID,
		Username: m.AuthorName,
	}
}

// JoinEnvelope announces identity entering room.
func JoinEnvelope(room RoomID, identity Identity) Envelope {
	return Envelope{
		Kind:     KindJoin,
		Content:  fmt.Sprintf("%s joined the room", identity.Username),
		RoomID:   room,
		UserID:   identity.ID,
		Username: identity.Username,
	}
}

// LeaveEnvelope announces identity leaving room. Like the historical wire
// format it names the user but does not carry the user id.
func LeaveEnvelope(room RoomID, identity Identity) Envelope {
	return Envelope{
		Kind:     KindLeave,
		Content:  fmt.Sprintf("%s left the room", identity.Username),
		RoomID:   room,
		Username: identity.Username,
	}
}
