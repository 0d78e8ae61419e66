package rest

import (
	"chat-rooms/domain/chat"
	"time"

	"github.com/samber/lo"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// userResponse never carries the password hash.
type userResponse struct {
	ID        chat.UserID `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      chat.Role   `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

type messageResponse struct {
	ID        chat.MessageID `json:"id"`
	Content   string         `json:"content"`
	RoomID    chat.RoomID    `json:"room_id"`
	UserID    chat.UserID    `json:"user_id"`
	Username  string         `json:"username"`
	Lang      string         `json:"lang,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type statusResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func toUserResponse(u chat.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toUserResponses(users []chat.User) []userResponse {
	return lo.Map(users, func(u chat.User, _ int) userResponse { return toUserResponse(u) })
}

func toMessageResponses(messages []chat.Message) []messageResponse {
	return lo.Map(messages, func(m chat.Message, _ int) messageResponse {
		return messageResponse{
			ID:        m.ID,
			Content:   m.Content,
			RoomID:    m.RoomID,
			UserID:    m.AuthorID,
			Username:  m.AuthorName,
			Lang:      m.Lang,
			CreatedAt: m.CreatedAt,
		}
	})
}
