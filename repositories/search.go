package repositories

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"
)

const (
	contentField = "content"
	roomField    = "room"
	idField      = "_id"
)

// SearchIndex is the full-text index of message contents, one bluge document per message.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func documentID(id chat.MessageID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (s *SearchIndex) Index(_ context.Context, message chat.Message) error {
	doc := bluge.NewDocument(documentID(message.ID)).
		AddField(bluge.NewTextField(contentField, message.Content)).
		AddField(bluge.NewKeywordField(roomField, string(message.RoomID)))
	return s.writer.Update(doc.ID(), doc)
}

func (s *SearchIndex) Remove(_ context.Context, id chat.MessageID) error {
	return s.writer.Delete(bluge.Identifier(documentID(id)))
}

// Search returns the ids of the messages of a room matching terms, best match first.
func (s *SearchIndex) Search(ctx context.Context, roomID chat.RoomID, terms string, limit int) ([]chat.MessageID, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("unable to open search reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField(contentField)).
		AddMust(bluge.NewTermQuery(string(roomID)).SetField(roomField))

	dmi, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []chat.MessageID
	match, err := dmi.Next()
	for err == nil && match != nil {
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != idField {
				return true
			}
			id, parseErr := strconv.ParseUint(string(value), 10, 64)
			if parseErr != nil {
				visitErr = parseErr
				return false
			}
			ids = append(ids, chat.MessageID(id))
			return false
		})
		if err == nil {
			err = visitErr
		}
		if err != nil {
			break
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// IndexedMessageRepository keeps the search index in step with the message store.
// The store is the source of truth: an indexing failure is logged, never returned.
type IndexedMessageRepository struct {
	contract.IMessageRepository
	index contract.ISearchIndex
	log   *slog.Logger
}

func NewIndexedMessageRepository(store contract.IMessageRepository, index contract.ISearchIndex, log *slog.Logger) *IndexedMessageRepository {
	return &IndexedMessageRepository{IMessageRepository: store, index: index, log: log}
}

func (r *IndexedMessageRepository) StoreMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	message, err := r.IMessageRepository.StoreMessage(ctx, cmd)
	if err != nil {
		return chat.Message{}, err
	}
	if err := r.index.Index(ctx, message); err != nil {
		r.log.Error("Unable to index message", "message_id", message.ID, "room_id", message.RoomID, "error", err)
	}
	return message, nil
}

func (r *IndexedMessageRepository) DeleteMessage(ctx context.Context, id chat.MessageID) error {
	if err := r.IMessageRepository.DeleteMessage(ctx, id); err != nil {
		return err
	}
	if err := r.index.Remove(ctx, id); err != nil {
		r.log.Error("Unable to remove message from index", "message_id", id, "error", err)
	}
	return nil
}
