package rest

import (
	"bytes"
	"chat-rooms/auth"
	"chat-rooms/domain/chat"
	"chat-rooms/repositories"
	"chat-rooms/services"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const password = "Str0ng!Passw0rd"

type fixture struct {
	server   *httptest.Server
	auth     *services.AuthService
	messages *repositories.IndexedMessageRepository
}

func newFixture(t *testing.T, origins ...string) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	store, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)
	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	index := repositories.NewSearchIndex(writer, log)
	messages := repositories.NewIndexedMessageRepository(store, index, log)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	authService := services.NewAuthService(log, users, issuer)
	chatService := services.NewChatService(log, messages, users, index, auth.Authorizer{}, 100)
	api := NewAPI(log, authService, chatService, auth.NewIdentityGate(issuer, users), origins)

	server := httptest.NewServer(api.Handler(http.NotFoundHandler()))
	t.Cleanup(server.Close)
	return &fixture{server: server, auth: authService, messages: messages}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	request, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

// user registers username and returns its id and an access token.
func (f *fixture) user(t *testing.T, username string) (chat.UserID, string) {
	t.Helper()
	created, err := f.auth.Register(context.Background(), auth.RegisterRequest{
		Username: username, Email: username + "@example.com", Password: password,
	})
	require.NoError(t, err)
	return created.ID, f.login(t, username)
}

func (f *fixture) admin(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.auth.SeedAdmin(context.Background(), auth.RegisterRequest{
		Username: "root", Email: "root@example.com", Password: password,
	}))
	return f.login(t, "root")
}

func (f *fixture) login(t *testing.T, username string) string {
	t.Helper()
	resp, raw := f.do(t, http.MethodPost, "/auth/token", "", tokenRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var token tokenResponse
	require.NoError(t, json.Unmarshal(raw, &token))
	return token.AccessToken
}

func (f *fixture) post(t *testing.T, room chat.RoomID, author chat.UserID, content string) chat.Message {
	t.Helper()
	message, err := f.messages.StoreMessage(context.Background(), chat.PostMessageCommand{
		Room: room, AuthorID: author, AuthorName: fmt.Sprintf("user-%d", author), Content: content, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return message
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestAPI_Health_And_Root(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, raw := f.do(t, http.MethodGet, "/health", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(map[string]string{"status": "healthy"}, decode[map[string]string](t, raw))

	resp, raw = f.do(t, http.MethodGet, "/", "", nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(serviceVersion, decode[map[string]string](t, raw)["version"])
}

func TestAPI_Register(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	body := registerRequest{Username: "alice", Email: "alice@example.com", Password: password}

	// When alice registers
	resp, raw := f.do(t, http.MethodPost, "/auth/register", "", body)

	// Then she is created as a regular user and her hash is not exposed
	req.Equal(http.StatusCreated, resp.StatusCode, string(raw))
	user := decode[map[string]any](t, raw)
	req.Equal("alice", user["username"])
	req.Equal(string(chat.RoleUser), user["role"])
	req.NotContains(string(raw), "argon2")
	req.NotContains(user, "password")

	// When she registers again
	resp, _ = f.do(t, http.MethodPost, "/auth/register", "", body)
	// Then the name is taken
	req.Equal(http.StatusConflict, resp.StatusCode)

	// When bob picks a weak password
	resp, _ = f.do(t, http.MethodPost, "/auth/register", "",
		registerRequest{Username: "bob", Email: "bob@example.com", Password: "weakweakweak"})
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	// When the body isn't JSON
	resp, _ = f.do(t, http.MethodPost, "/auth/register", "", "{")
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "alice")

	// The OAuth2 password form works like JSON
	form := url.Values{"username": {"alice"}, "password": {password}}
	resp, err := http.Post(f.server.URL+"/auth/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()
	req.Equal(http.StatusOK, resp.StatusCode)
	var token tokenResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&token))
	req.NotEmpty(token.AccessToken)
	req.Equal("bearer", token.TokenType)

	// Wrong password and unknown user look alike
	wrong, raw := f.do(t, http.MethodPost, "/auth/token", "", tokenRequest{Username: "alice", Password: "nope"})
	req.Equal(http.StatusUnauthorized, wrong.StatusCode)
	unknown, raw2 := f.do(t, http.MethodPost, "/auth/token", "", tokenRequest{Username: "ghost", Password: "nope"})
	req.Equal(http.StatusUnauthorized, unknown.StatusCode)
	req.Equal(string(raw), string(raw2))
}

func TestAPI_Me(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id, token := f.user(t, "alice")

	resp, _ := f.do(t, http.MethodGet, "/auth/me", "", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Equal("Bearer", resp.Header.Get("WWW-Authenticate"))

	resp, _ = f.do(t, http.MethodGet, "/auth/me", "not-a-jwt", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, raw := f.do(t, http.MethodGet, "/auth/me", token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	me := decode[userResponse](t, raw)
	req.Equal(id, me.ID)
	req.Equal("alice@example.com", me.Email)
}

func TestAPI_Messages_Pages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id, token := f.user(t, "alice")
	first := f.post(t, "general", id, "one")
	second := f.post(t, "general", id, "two")
	third := f.post(t, "general", id, "three")
	f.post(t, "random", id, "elsewhere")

	resp, _ := f.do(t, http.MethodGet, "/chat/messages/general", "", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Newest first
	resp, raw := f.do(t, http.MethodGet, "/chat/messages/general?limit=2", token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	page := decode[[]messageResponse](t, raw)
	req.Equal([]chat.MessageID{third.ID, second.ID}, []chat.MessageID{page[0].ID, page[1].ID})
	req.Equal("user-1", page[0].Username)

	// The cursor is an exclusive upper bound
	resp, raw = f.do(t, http.MethodGet, fmt.Sprintf("/chat/messages/general?limit=2&cursor=%d", second.ID), token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	page = decode[[]messageResponse](t, raw)
	req.Len(page, 1)
	req.Equal(first.ID, page[0].ID)

	// A zero cursor bounds everything out
	resp, raw = f.do(t, http.MethodGet, "/chat/messages/general?cursor=0", token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.JSONEq("[]", string(raw))

	resp, raw = f.do(t, http.MethodGet, "/chat/messages/general?skip=1", token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(decode[[]messageResponse](t, raw), 2)

	resp, raw = f.do(t, http.MethodGet, "/chat/messages/empty", token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.JSONEq("[]", string(raw))

	resp, _ = f.do(t, http.MethodGet, "/chat/messages/general?limit=ten", token, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/chat/messages/general?skip=-1", token, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Delete_Message(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	aliceID, alice := f.user(t, "alice")
	_, bob := f.user(t, "bob")
	message := f.post(t, "general", aliceID, "mine")
	path := fmt.Sprintf("/chat/messages/%d", message.ID)

	// Bob can't delete alice's message
	resp, _ := f.do(t, http.MethodDelete, path, bob, nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	// Alice can
	resp, _ = f.do(t, http.MethodDelete, path, alice, nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	// Then it is gone
	resp, _ = f.do(t, http.MethodDelete, path, alice, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
	_, err := f.messages.GetMessage(context.Background(), message.ID)
	req.Error(err)
}

func TestAPI_Search(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	id, token := f.user(t, "alice")
	hit := f.post(t, "general", id, "the badger is back")
	f.post(t, "general", id, "nothing to see")
	f.post(t, "random", id, "another badger")

	resp, raw := f.do(t, http.MethodGet, "/chat/search/general?q=badger", token, nil)
	req.Equal(http.StatusOK, resp.StatusCode, string(raw))
	found := decode[[]messageResponse](t, raw)
	req.Len(found, 1)
	req.Equal(hit.ID, found[0].ID)

	resp, _ = f.do(t, http.MethodGet, "/chat/search/general?q=", token, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Admin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	aliceID, alice := f.user(t, "alice")
	root := f.admin(t)
	message := f.post(t, "general", aliceID, "moderate me")

	// Regular users are kept out
	resp, _ := f.do(t, http.MethodGet, "/admin/users", alice, nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/admin/users", "", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// The admin lists users in creation order
	resp, raw := f.do(t, http.MethodGet, "/admin/users", root, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	users := decode[[]userResponse](t, raw)
	req.Len(users, 2)
	req.Equal("alice", users[0].Username)
	req.Equal(chat.RoleAdmin, users[1].Role)

	resp, raw = f.do(t, http.MethodGet, fmt.Sprintf("/admin/users/%d", aliceID), root, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("alice", decode[userResponse](t, raw).Username)

	resp, _ = f.do(t, http.MethodGet, "/admin/users/999", root, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/admin/users/abc", root, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	// The admin deletes any message
	resp, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/admin/messages/%d", message.ID), alice, nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/admin/messages/%d", message.ID), root, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestAPI_Cors(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, "https://chat.example.com")

	preflight := func(origin string) *http.Response {
		request, err := http.NewRequest(http.MethodOptions, f.server.URL+"/chat/messages/general", nil)
		req.NoError(err)
		request.Header.Set("Origin", origin)
		request.Header.Set("Access-Control-Request-Method", http.MethodGet)
		resp, err := http.DefaultClient.Do(request)
		req.NoError(err)
		_ = resp.Body.Close()
		return resp
	}

	resp := preflight("https://chat.example.com")
	req.Equal(http.StatusNoContent, resp.StatusCode)
	req.Equal("https://chat.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = preflight("https://evil.example.com")
	req.Empty(resp.Header.Get("Access-Control-Allow-Origin"))
}
