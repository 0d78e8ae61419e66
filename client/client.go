// Package client talks to a chat-rooms server: accounts and history over
// HTTP, live rooms over websocket. The tester CLI and the end-to-end suite use it.
package client

import (
	"bytes"
	"chat-rooms/domain/chat"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Message is a stored message as served by the history endpoint.
type Message struct {
	ID        chat.MessageID `json:"id"`
	Content   string         `json:"content"`
	RoomID    chat.RoomID    `json:"room_id"`
	UserID    chat.UserID    `json:"user_id"`
	Username  string         `json:"username"`
	Lang      string         `json:"lang,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type User struct {
	ID        chat.UserID `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      chat.Role   `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// StatusError is returned for any non 2xx answer.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New takes the server base URL, e.g. http://localhost:8000.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Register(ctx context.Context, username, email, password string) (User, error) {
	var user User
	body := map[string]string{"username": username, "email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &user)
	return user, err
}

// Login returns an access token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var token struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/token", "", body, &token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &user)
	return user, err
}

// Messages reads a page of room, newest first. A nil cursor starts from the newest message.
func (c *Client) Messages(ctx context.Context, token string, room chat.RoomID, limit int, cursor *chat.MessageID) ([]Message, error) {
	query := url.Values{"limit": {fmt.Sprint(limit)}}
	if cursor != nil {
		query.Set("cursor", fmt.Sprint(*cursor))
	}
	var messages []Message
	err := c.do(ctx, http.MethodGet, "/chat/messages/"+url.PathEscape(string(room))+"?"+query.Encode(), token, nil, &messages)
	return messages, err
}

func (c *Client) DeleteMessage(ctx context.Context, token string, id chat.MessageID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/chat/messages/%d", id), token, nil, nil)
}

func (c *Client) Search(ctx context.Context, token string, room chat.RoomID, terms string) ([]Message, error) {
	var messages []Message
	path := "/chat/search/" + url.PathEscape(string(room)) + "?" + url.Values{"q": {terms}}.Encode()
	err := c.do(ctx, http.MethodGet, path, token, nil, &messages)
	return messages, err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var failure struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &StatusError{Status: resp.StatusCode, Detail: failure.Detail}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Live is one websocket connection to a room.
type Live struct {
	conn *websocket.Conn
}

// Join opens the live channel of room. A rejected token surfaces on the
// first Next as a close error with code 1008.
func (c *Client) Join(ctx context.Context, token string, room chat.RoomID) (*Live, error) {
	target := strings.Replace(c.baseURL, "http", "ws", 1) +
		"/chat/ws/" + url.PathEscape(string(room)) + "?" + url.Values{"token": {token}}.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return &Live{conn: conn}, nil
}

func (l *Live) Send(content string) error {
	return l.conn.WriteJSON(map[string]string{"content": content})
}

// Next blocks until the next envelope or until timeout when it is positive.
func (l *Live) Next(timeout time.Duration) (chat.Envelope, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return chat.Envelope{}, err
	}
	var envelope chat.Envelope
	err := l.conn.ReadJSON(&envelope)
	return envelope, err
}

// CloseCode extracts the websocket close code of err, or 0.
func CloseCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return 0
}

// Close says goodbye with a normal closure.
func (l *Live) Close() error {
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return l.conn.Close()
}
