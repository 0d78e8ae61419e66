package ws

import (
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"chat-rooms/mocks"
	"chat-rooms/repositories"
	"chat-rooms/runtime"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = chat.Identity{ID: 1, Username: "alice", Role: chat.RoleUser}
	bob   = chat.Identity{ID: 2, Username: "bob", Role: chat.RoleUser}
)

var testOptions = Options{
	WriteWait:    time.Second,
	PongWait:     5 * time.Second,
	PingInterval: time.Second,
	MaxFrameSize: 512,
}

func newServer(t *testing.T, allowedOrigins []string) *httptest.Server {
	t.Helper()
	return newServerWith(t, allowedOrigins, testOptions)
}

func newServerWith(t *testing.T, allowedOrigins []string, opts Options) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gate := mocks.NewMockIIdentityGate(gomock.NewController(t))
	gate.EXPECT().Authenticate(gomock.Any(), "alice-token").Return(alice, nil).AnyTimes()
	gate.EXPECT().Authenticate(gomock.Any(), "bob-token").Return(bob, nil).AnyTimes()
	gate.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(chat.Identity{}, errors.ErrUnauthenticated).AnyTimes()

	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry, time.Second)
	sessions := runtime.NewSessions(log, gate, registry, broadcaster,
		runtime.NewHistory(log, store), runtime.NewIngest(log, store, broadcaster, nil, 100), 50)

	router := mux.NewRouter()
	router.Handle("/chat/ws/{room_id}", NewHandler(log, sessions, allowedOrigins, opts)).Methods(http.MethodGet)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, room, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/chat/ws/" + room + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readEnvelope(t *testing.T, conn *websocket.Conn) chat.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope chat.Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func TestHandler_Invalid_Token_Closes_With_Policy_Violation(t *testing.T) {
	req := require.New(t)
	server := newServer(t, nil)

	// Given a client with a forged token
	conn, _, err := dial(t, server, "r1", "forged", nil)
	// Then the upgrade itself succeeds
	req.NoError(err)

	// And the first read reports a policy violation close
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = conn.ReadMessage()
	req.Error(err)
	req.True(websocket.IsCloseError(err, chat.ClosePolicyViolation), "got %v", err)
}

func TestHandler_Two_Clients_Exchange_Messages(t *testing.T) {
	req := require.New(t)
	server := newServer(t, nil)

	// Given alice in room r1
	connA, _, err := dial(t, server, "r1", "alice-token", nil)
	req.NoError(err)
	join := readEnvelope(t, connA)
	req.Equal(chat.KindJoin, join.Kind)
	req.Equal("alice", join.Username)

	// When bob joins
	connB, _, err := dial(t, server, "r1", "bob-token", nil)
	req.NoError(err)

	// Then both are told about bob
	req.Equal("bob", readEnvelope(t, connA).Username)
	req.Equal("bob", readEnvelope(t, connB).Username)

	// When bob talks
	req.NoError(connB.WriteMessage(websocket.TextMessage, []byte(`{"content":"hello alice"}`)))

	// Then both receive the persisted message
	for _, conn := range []*websocket.Conn{connA, connB} {
		envelope := readEnvelope(t, conn)
		req.Equal(chat.KindMessage, envelope.Kind)
		req.Equal("hello alice", envelope.Content)
		req.Equal(bob.ID, envelope.UserID)
		req.Equal(chat.RoomID("r1"), envelope.RoomID)
	}

	// When bob hangs up
	req.NoError(connB.Close())

	// Then alice sees him leave
	leave := readEnvelope(t, connA)
	req.Equal(chat.KindLeave, leave.Kind)
	req.Equal("bob", leave.Username)
}

func TestHandler_History_Replayed_On_Join(t *testing.T) {
	req := require.New(t)
	server := newServer(t, nil)

	// Given alice left a message in r1
	connA, _, err := dial(t, server, "r1", "alice-token", nil)
	req.NoError(err)
	readEnvelope(t, connA)
	req.NoError(connA.WriteMessage(websocket.TextMessage, []byte(`{"content":"first"}`)))
	req.Equal("first", readEnvelope(t, connA).Content)

	// When bob joins
	connB, _, err := dial(t, server, "r1", "bob-token", nil)
	req.NoError(err)

	// Then he gets his join then the stored message
	req.Equal(chat.KindJoin, readEnvelope(t, connB).Kind)
	replayed := readEnvelope(t, connB)
	req.Equal(chat.KindMessage, replayed.Kind)
	req.Equal("first", replayed.Content)
	req.Equal("alice", replayed.Username)
}

func TestHandler_Malformed_Frames_Are_Ignored(t *testing.T) {
	req := require.New(t)
	server := newServer(t, nil)

	// Given alice alone in a room
	conn, _, err := dial(t, server, "r1", "alice-token", nil)
	req.NoError(err)
	readEnvelope(t, conn)

	// When she sends garbage then a valid message
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"   "}`)))
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"ok"}`)))

	// Then only the valid one comes back and the session is still alive
	envelope := readEnvelope(t, conn)
	req.Equal(chat.KindMessage, envelope.Kind)
	req.Equal("ok", envelope.Content)
}

func TestHandler_Disallowed_Origin_Is_Refused(t *testing.T) {
	req := require.New(t)
	server := newServer(t, []string{"https://chat.example.com"})

	// When a page from another origin tries to connect
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := dial(t, server, "r1", "alice-token", header)

	// Then the handshake is refused
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.NotNil(resp)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestHandler_Allowed_Origin_Is_Accepted(t *testing.T) {
	req := require.New(t)
	server := newServer(t, []string{"https://chat.example.com"})

	header := http.Header{"Origin": []string{"https://chat.example.com"}}
	conn, _, err := dial(t, server, "r1", "alice-token", header)

	req.NoError(err)
	req.Equal(chat.KindJoin, readEnvelope(t, conn).Kind)
}

func TestConn_Oversized_Frame_Ends_Session(t *testing.T) {
	req := require.New(t)
	server := newServer(t, nil)

	// Given alice and bob in the same room
	connA, _, err := dial(t, server, "r1", "alice-token", nil)
	req.NoError(err)
	readEnvelope(t, connA)
	connB, _, err := dial(t, server, "r1", "bob-token", nil)
	req.NoError(err)
	readEnvelope(t, connA)
	readEnvelope(t, connB)

	// When bob sends a frame above the read limit
	big := `{"content":"` + strings.Repeat("x", int(testOptions.MaxFrameSize)) + `"}`
	req.NoError(connB.WriteMessage(websocket.TextMessage, []byte(big)))

	// Then his session ends and alice sees him leave
	leave := readEnvelope(t, connA)
	req.Equal(chat.KindLeave, leave.Kind)
	req.Equal("bob", leave.Username)
}

func TestConn_Zero_Ping_Interval_Keeps_Server_Alive(t *testing.T) {
	req := require.New(t)
	opts := testOptions
	opts.PingInterval = 0
	server := newServerWith(t, nil, opts)

	// When alice joins a server whose keepalive is disabled
	conn, _, err := dial(t, server, "r1", "alice-token", nil)
	req.NoError(err)

	// Then the session works and can exchange messages
	req.Equal(chat.KindJoin, readEnvelope(t, conn).Kind)
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"still here"}`)))
	req.Equal("still here", readEnvelope(t, conn).Content)
}

func TestConn_Cancelled_Receive_Ignores_Pongs(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	opts := testOptions
	opts.PongWait = time.Minute
	opts.PingInterval = 30 * time.Second

	// Given a server side connection waiting for a frame
	conns := make(chan *Conn, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- NewConn("c1", ws, log, opts)
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	req.NoError(err)
	t.Cleanup(func() { _ = client.Close() })
	conn := <-conns
	t.Cleanup(func() { _ = conn.Close(chat.CloseGoingAway, "") })

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan error, 1)
	go func() {
		_, err := conn.Receive(ctx)
		received <- err
	}()

	// When the receive is cancelled while the peer keeps sending pongs
	stopPongs := make(chan struct{})
	defer close(stopPongs)
	go func() {
		for {
			select {
			case <-stopPongs:
				return
			default:
			}
			_ = client.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
			time.Sleep(time.Millisecond)
		}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	// Then the receive returns promptly and pongs no longer extend the deadline
	select {
	case err := <-received:
		req.Error(err)
	case <-time.After(2 * time.Second):
		req.Fail("receive was not cancelled")
	}
	req.True(conn.expired.Load())
	req.NoError(conn.onPong(""))
}
