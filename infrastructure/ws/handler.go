package ws

import (
	"chat-rooms/domain/chat"
	"chat-rooms/runtime"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handler upgrades GET /chat/ws/{room_id}?token= and runs one session per
// connection on the serving goroutine. The credential is checked after the
// upgrade so a rejected client learns why through the close code.
type Handler struct {
	log      *slog.Logger
	sessions *runtime.Sessions
	upgrader websocket.Upgrader
	opts     Options
}

// NewHandler accepts any origin when allowedOrigins is empty.
func NewHandler(log *slog.Logger, sessions *runtime.Sessions, allowedOrigins []string, opts Options) *Handler {
	h := &Handler{log: log, sessions: sessions, opts: opts}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if lo.ContainsBy(allowedOrigins, func(allowed string) bool { return strings.EqualFold(allowed, origin) }) {
				return true
			}
			log.Info("Blocked connection from disallowed origin", "origin", origin)
			return false
		},
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := chat.RoomID(mux.Vars(r)["room_id"])
	if roomID == "" {
		http.Error(w, "missing room", http.StatusNotFound)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		h.log.Debug("Upgrade failed", "room_id", roomID, "error", err)
		return
	}

	conn := NewConn(chat.ConnID(uuid.NewString()), socket, h.log, h.opts)
	h.sessions.New(conn, roomID, r.URL.Query().Get("token")).Run(r.Context())
}
