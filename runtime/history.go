package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// History replays the recent messages of a room to a single connection.
type History struct {
	log   *slog.Logger
	store contract.IMessageRepository
}

func NewHistory(log *slog.Logger, store contract.IMessageRepository) *History {
	return &History{log: log, store: store}
}

// Replay sends up to limit messages older than cursor (newest ones when cursor is nil),
// oldest first. The store hands them back newest first.
// Store failures wrap ErrHistoryUnavailable, send failures wrap ErrDeliveryFailed
// so that the caller can tell a broken channel from a missing history.
func (h *History) Replay(ctx context.Context, conn contract.Connection, roomID chat.RoomID, limit int, cursor *chat.MessageID) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	messages, err := h.store.GetMessages(ctx, chat.GetMessageCommand{
		Room:   roomID,
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrHistoryUnavailable, err)
	}

	sent := 0
	for _, m := range lo.Reverse(messages) {
		if err := conn.Send(ctx, chat.MessageEnvelope(m)); err != nil {
			return sent, fmt.Errorf("%w: %v", errors.ErrDeliveryFailed, err)
		}
		sent++
	}
	h.log.Debug("History replayed", "conn_id", conn.ID(), "room_id", roomID, "count", sent)
	return sent, nil
}
