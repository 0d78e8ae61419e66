package repositories

import (
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	messageSequenceKey = "seq:msg"
	sequenceBandwidth  = 100
	// 20 digits hold any uint64, so the padded ids sort like numbers.
	idWidth  = 20
	maxIDKey = "99999999999999999999"
)

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	sequence *badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("unable to lease message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, sequence: seq}, nil
}

// Close gives back the unused part of the leased sequence.
func (m *MessageRepository) Close() error {
	return m.sequence.Release()
}

// roomPrefix is "msg:{len}:{room}:". The length keeps a room named "a" from
// matching the keys of a room named "a:b".
func roomPrefix(room chat.RoomID) string {
	return fmt.Sprintf("msg:%d:%s:", len(room), room)
}

func messageKey(room chat.RoomID, id chat.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%0*d", roomPrefix(room), idWidth, id))
}

// messageIndexKey maps an id back to its room, needed to delete by id.
func messageIndexKey(id chat.MessageID) []byte {
	return []byte(fmt.Sprintf("msgid:%0*d", idWidth, id))
}

// StoreMessage persists a message under "msg:{len}:{room}:{id_padded}".
// Ids come from a badger sequence: they are unique and grow with insertion order
// across restarts, gaps allowed.
func (m *MessageRepository) StoreMessage(_ context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	next, err := m.sequence.Next()
	if err != nil {
		return chat.Message{}, err
	}
	message := chat.Message{
		// A sequence starts at zero, ids start at one
		ID:         chat.MessageID(next + 1),
		RoomID:     cmd.Room,
		AuthorID:   cmd.AuthorID,
		AuthorName: cmd.AuthorName,
		Content:    cmd.Content,
		Lang:       cmd.Lang,
		CreatedAt:  cmd.CreatedAt.UTC(),
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.RoomID, message.ID), encodeMessage(message)); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(message.ID), []byte(message.RoomID))
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// GetMessages returns the messages of a room, newest first.
// Cursor is an exclusive upper bound on ids, Skip is applied after the cursor.
// Reading page after page with the id of the last message as the next cursor
// never repeats nor skips a message.
func (m *MessageRepository) GetMessages(_ context.Context, cmd chat.GetMessageCommand) ([]chat.Message, error) {
	if cmd.Limit <= 0 {
		return nil, nil
	}
	if cmd.Cursor != nil && *cmd.Cursor == 0 {
		return nil, nil
	}

	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix(cmd.Room))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse seek lands on the greatest key lower or equal to the seek key
		seekKey := append([]byte{}, prefix...)
		switch cmd.Cursor {
		case nil:
			seekKey = append(seekKey, maxIDKey...)
		default:
			seekKey = append(seekKey, fmt.Sprintf("%0*d", idWidth, *cmd.Cursor-1)...)
		}

		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < cmd.Skip {
				skipped++
				continue
			}
			if len(messages) == cmd.Limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *MessageRepository) GetMessage(_ context.Context, id chat.MessageID) (chat.Message, error) {
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		room, err := lookupRoom(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(messageKey(room, id))
		if err != nil {
			return notFound(err, errors.ErrMessageNotFound)
		}
		return item.Value(func(value []byte) error {
			message, err = decodeMessage(value)
			return err
		})
	})
	return message, err
}

// DeleteMessage hard deletes a message and its id index.
func (m *MessageRepository) DeleteMessage(_ context.Context, id chat.MessageID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		room, err := lookupRoom(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(messageKey(room, id)); err != nil {
			return err
		}
		return txn.Delete(messageIndexKey(id))
	})
}

func lookupRoom(txn *badger.Txn, id chat.MessageID) (chat.RoomID, error) {
	item, err := txn.Get(messageIndexKey(id))
	if err != nil {
		return "", notFound(err, errors.ErrMessageNotFound)
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return chat.RoomID(value), nil
}

// notFound turns badger's missing key into the given domain error.
func notFound(err, domainErr error) error {
	if stdErrors.Is(err, badger.ErrKeyNotFound) {
		return domainErr
	}
	return err
}
