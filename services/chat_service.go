package services

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
)

type IChatService interface {
	GetMessages(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, error)
	DeleteMessage(ctx context.Context, identity chat.Identity, id chat.MessageID) error
	Search(ctx context.Context, roomID chat.RoomID, terms string, limit int) ([]chat.Message, error)
	ListUsers(ctx context.Context, skip, limit int) ([]chat.User, error)
	GetUser(ctx context.Context, id chat.UserID) (chat.User, error)
}

// ChatService serves the request/response side of the chat: history pages,
// deletions, search and user administration. Live traffic goes through sessions.
type ChatService struct {
	log        *slog.Logger
	messages   contract.IMessageRepository
	users      contract.IUserRepository
	index      contract.ISearchIndex
	authorizer contract.IAuthorizer
	maxPage    int
}

func NewChatService(log *slog.Logger, messages contract.IMessageRepository, users contract.IUserRepository,
	index contract.ISearchIndex, authorizer contract.IAuthorizer, maxPage int) *ChatService {
	return &ChatService{
		log:        log,
		messages:   messages,
		users:      users,
		index:      index,
		authorizer: authorizer,
		maxPage:    maxPage,
	}
}

// GetMessages returns a page of a room, newest first. Limits are clamped to the maximum page size.
func (s *ChatService) GetMessages(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, error) {
	if cmd.Skip < 0 || cmd.Limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must be positive", errors.ErrInvalidQuery)
	}
	cmd.Limit = s.clamp(cmd.Limit)
	return s.messages.GetMessages(ctx, cmd)
}

// DeleteMessage removes a message if identity is its author or an admin.
// A missing message is reported before any authorization decision.
func (s *ChatService) DeleteMessage(ctx context.Context, identity chat.Identity, id chat.MessageID) error {
	message, err := s.messages.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if !s.authorizer.CanDelete(identity, message) {
		return fmt.Errorf("%w: %s can't delete message %d", errors.ErrForbidden, identity.Username, id)
	}
	if err := s.messages.DeleteMessage(ctx, id); err != nil {
		return err
	}
	s.log.Info("Message deleted", "message_id", id, "room_id", message.RoomID, "user_id", identity.ID)
	return nil
}

// Search finds messages of a room by content. Hits whose message has been
// deleted meanwhile are skipped.
func (s *ChatService) Search(ctx context.Context, roomID chat.RoomID, terms string, limit int) ([]chat.Message, error) {
	terms = strings.TrimSpace(terms)
	if terms == "" {
		return nil, fmt.Errorf("%w: empty search", errors.ErrInvalidQuery)
	}
	ids, err := s.index.Search(ctx, roomID, terms, s.clamp(limit))
	if err != nil {
		return nil, err
	}
	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.messages.GetMessage(ctx, id)
		if stdErrors.Is(err, errors.ErrMessageNotFound) {
			s.log.Debug("Search hit no longer stored", "message_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *ChatService) ListUsers(ctx context.Context, skip, limit int) ([]chat.User, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must be positive", errors.ErrInvalidQuery)
	}
	return s.users.ListUsers(ctx, skip, s.clamp(limit))
}

func (s *ChatService) GetUser(ctx context.Context, id chat.UserID) (chat.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// clamp maps zero to the default page size and caps everything else.
func (s *ChatService) clamp(limit int) int {
	if limit <= 0 || limit > s.maxPage {
		return s.maxPage
	}
	return limit
}
