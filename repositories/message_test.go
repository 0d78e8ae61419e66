package repositories

import (
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessageRepository(t *testing.T, db *badger.DB) *MessageRepository {
	t.Helper()
	repository, err := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func post(room chat.RoomID, content string) chat.PostMessageCommand {
	return chat.PostMessageCommand{
		Room:       room,
		AuthorID:   1,
		AuthorName: "alice",
		Content:    content,
		Lang:       "en",
		CreatedAt:  time.Now(),
	}
}

func TestMessageRepository_Store_Assigns_Increasing_IDs(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, openDB(t))

	// When three messages are stored
	var ids []chat.MessageID
	for i := 0; i < 3; i++ {
		message, err := repository.StoreMessage(ctx, post("general", fmt.Sprintf("message %d", i)))
		req.NoError(err)
		ids = append(ids, message.ID)
	}

	// Then ids start at one and strictly increase
	req.Equal([]chat.MessageID{1, 2, 3}, ids)
}

func TestMessageRepository_GetMessages_Newest_First_With_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, openDB(t))

	// Given a room with five messages
	for i := 0; i < 5; i++ {
		_, err := repository.StoreMessage(ctx, post("general", fmt.Sprintf("message %d", i)))
		req.NoError(err)
	}

	// When the last two are requested
	messages, err := repository.GetMessages(ctx, chat.GetMessageCommand{Room: "general", Limit: 2})

	// Then the newest come first
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("message 4", messages[0].Content)
	req.Equal("message 3", messages[1].Content)
	req.Equal("alice", messages[0].AuthorName)
	req.Equal("en", messages[0].Lang)
}

func TestMessageRepository_GetMessages_Skip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, openDB(t))

	for i := 0; i < 5; i++ {
		_, err := repository.StoreMessage(ctx, post("general", fmt.Sprintf("message %d", i)))
		req.NoError(err)
	}

	// When the two newest are skipped
	messages, err := repository.GetMessages(ctx, chat.GetMessageCommand{Room: "general", Skip: 2, Limit: 10})

	// Then the three oldest are returned
	req.NoError(err)
	req.Equal([]string{"message 2", "message 1", "message 0"},
		lo.Map(messages, func(m chat.Message, _ int) string { return m.Content }))
}

func TestMessageRepository_Pagination_Never_Repeats_Nor_Skips(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, openDB(t))

	// Given two rooms whose messages are interleaved
	var expected []chat.MessageID
	for i := 0; i < 23; i++ {
		message, err := repository.StoreMessage(ctx, post("general", fmt.Sprintf("general %d", i)))
		req.NoError(err)
		expected = append(expected, message.ID)
		_, err = repository.StoreMessage(ctx, post("random", fmt.Sprintf("random %d", i)))
		req.NoError(err)
	}

	// When the room is read page after page
	var collected []chat.MessageID
	var cursor *chat.MessageID
	for pages := 0; pages < 10; pages++ {
		page, err := repository.GetMessages(ctx, chat.GetMessageCommand{Room: "general", Limit: 5, Cursor: cursor})
		req.NoError(err)
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			collected = append(collected, m.ID)
		}
		cursor = lo.ToPtr(page[len(page)-1].ID)
	}

	// Then every message is seen exactly once, newest first
	req.Equal(lo.Reverse(expected), collected)
}

func TestMessageRepository_Rooms_Sharing_A_Prefix_Are_Isolated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, openDB(t))

	// Given a room whose name is the prefix of another
	_, err := repository.StoreMessage(ctx, post("a", "in a"))
	req.NoError(err)
	_, err = repository.StoreMessage(ctx, post("a:b", "in a:b"))
	req.NoError(err)

	// When the shortest one is read
	messages, err := repository.GetMessages(ctx, chat.GetMessageCommand{Room: "a", Limit: 10})

	// Then it only holds its own message
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("in a", messages[0].Content)
}

func TestMessageRepository_Cursor_Zero_Is_Empty(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, openDB(t))
	_, err := repository.StoreMessage(ctx, post("general", "hello"))
	req.NoError(err)

	messages, err := repository.GetMessages(ctx, chat.GetMessageCommand{Room: "general", Limit: 10, Cursor: lo.ToPtr(chat.MessageID(0))})
	req.NoError(err)
	req.Empty(messages)
}

func TestMessageRepository_Get_And_Delete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, openDB(t))

	// Given a stored message
	stored, err := repository.StoreMessage(ctx, post("general", "self destruct"))
	req.NoError(err)

	// Then it can be fetched by id
	fetched, err := repository.GetMessage(ctx, stored.ID)
	req.NoError(err)
	req.Equal(stored.Content, fetched.Content)
	req.Equal(stored.RoomID, fetched.RoomID)
	req.True(stored.CreatedAt.Equal(fetched.CreatedAt))

	// When it is deleted
	req.NoError(repository.DeleteMessage(ctx, stored.ID))

	// Then it is gone
	_, err = repository.GetMessage(ctx, stored.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
	req.ErrorIs(repository.DeleteMessage(ctx, stored.ID), errors.ErrMessageNotFound)
	messages, err := repository.GetMessages(ctx, chat.GetMessageCommand{Room: "general", Limit: 10})
	req.NoError(err)
	req.Empty(messages)
}
