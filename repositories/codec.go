package repositories

import (
	"chat-rooms/domain/chat"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in the protobuf wire format so that fields can be added
// later without breaking what is already on disk. Unknown fields are skipped.

const (
	messageIDField         protowire.Number = 1
	messageRoomField       protowire.Number = 2
	messageAuthorIDField   protowire.Number = 3
	messageAuthorNameField protowire.Number = 4
	messageContentField    protowire.Number = 5
	messageLangField       protowire.Number = 6
	messageCreatedAtField  protowire.Number = 7
)

const (
	userIDField        protowire.Number = 1
	userUsernameField  protowire.Number = 2
	userEmailField     protowire.Number = 3
	userPasswordField  protowire.Number = 4
	userRoleField      protowire.Number = 5
	userCreatedAtField protowire.Number = 6
)

func encodeMessage(m chat.Message) []byte {
	var b []byte
	b = appendVarint(b, messageIDField, uint64(m.ID))
	b = appendString(b, messageRoomField, string(m.RoomID))
	b = appendVarint(b, messageAuthorIDField, uint64(m.AuthorID))
	b = appendString(b, messageAuthorNameField, m.AuthorName)
	b = appendString(b, messageContentField, m.Content)
	b = appendString(b, messageLangField, m.Lang)
	b = appendVarint(b, messageCreatedAtField, uint64(m.CreatedAt.UnixNano()))
	return b
}

func decodeMessage(b []byte) (chat.Message, error) {
	var m chat.Message
	err := decodeFields(b, func(num protowire.Number, v uint64, s string) {
		switch num {
		case messageIDField:
			m.ID = chat.MessageID(v)
		case messageRoomField:
			m.RoomID = chat.RoomID(s)
		case messageAuthorIDField:
			m.AuthorID = chat.UserID(v)
		case messageAuthorNameField:
			m.AuthorName = s
		case messageContentField:
			m.Content = s
		case messageLangField:
			m.Lang = s
		case messageCreatedAtField:
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
	})
	return m, err
}

func encodeUser(u chat.User) []byte {
	var b []byte
	b = appendVarint(b, userIDField, uint64(u.ID))
	b = appendString(b, userUsernameField, u.Username)
	b = appendString(b, userEmailField, u.Email)
	b = appendString(b, userPasswordField, u.PasswordHash)
	b = appendString(b, userRoleField, string(u.Role))
	b = appendVarint(b, userCreatedAtField, uint64(u.CreatedAt.UnixNano()))
	return b
}

func decodeUser(b []byte) (chat.User, error) {
	var u chat.User
	err := decodeFields(b, func(num protowire.Number, v uint64, s string) {
		switch num {
		case userIDField:
			u.ID = chat.UserID(v)
		case userUsernameField:
			u.Username = s
		case userEmailField:
			u.Email = s
		case userPasswordField:
			u.PasswordHash = s
		case userRoleField:
			u.Role = chat.Role(s)
		case userCreatedAtField:
			u.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
	})
	return u, err
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// decodeFields walks a record and hands varint and bytes fields to visit.
func decodeFields(b []byte, visit func(num protowire.Number, v uint64, s string)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("corrupted field %d: %w", num, protowire.ParseError(n))
			}
			visit(num, v, "")
			b = b[n:]
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("corrupted field %d: %w", num, protowire.ParseError(n))
			}
			visit(num, 0, s)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("corrupted field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
