package repositories

import (
	"chat-rooms/domain/chat"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
)

const messagePrefix = "msg:"

// InspectRow renders one badger entry for the debug inspector.
func InspectRow(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, messagePrefix):
		m, err := decodeMessage(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("#%d [%s] %s: %s", m.ID, m.RoomID, m.AuthorName, m.Content)
	case strings.HasPrefix(key, "user:"):
		u, err := decodeUser(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "USER"
		row.Detail = fmt.Sprintf("#%d %s <%s> %s", u.ID, u.Username, u.Email, u.Role)
	case strings.HasPrefix(key, "msgid:"), strings.HasPrefix(key, "userid:"), strings.HasPrefix(key, "useremail:"):
		row.Type = "INDEX"
		row.Detail = string(val)
	}
	return row
}

// ScanMessages walks the stored messages of room in id order, or of every
// room when room is empty. It only reads, so it works on a read-only database.
func ScanMessages(db *badger.DB, room chat.RoomID, visit func(chat.Message) error) error {
	prefix := []byte(messagePrefix)
	if room != "" {
		prefix = []byte(roomPrefix(room))
	}
	return db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return fmt.Errorf("key %s: %w", it.Item().Key(), err)
				}
				return visit(message)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
