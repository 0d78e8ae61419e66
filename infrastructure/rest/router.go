// Package rest exposes the request/response side of the chat over HTTP/JSON:
// accounts and tokens, room history pages, deletions, search and administration.
package rest

import (
	"chat-rooms/contract"
	"chat-rooms/services"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

const (
	defaultPageSize   = 50
	defaultAdminLimit = 100
	serviceName       = "chat-rooms"
	serviceVersion    = "1.0.0"
)

type API struct {
	log     *slog.Logger
	auth    services.IAuthService
	chat    services.IChatService
	gate    contract.IIdentityGate
	origins []string
}

func NewAPI(log *slog.Logger, auth services.IAuthService, chat services.IChatService,
	gate contract.IIdentityGate, allowedOrigins []string) *API {
	return &API{log: log, auth: auth, chat: chat, gate: gate, origins: allowedOrigins}
}

// Handler routes every endpoint. live serves the websocket upgrade, which
// authenticates through its query string rather than a header.
func (a *API) Handler(live http.Handler) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", a.root).Methods(http.MethodGet)
	router.HandleFunc("/health", a.health).Methods(http.MethodGet)

	router.HandleFunc("/auth/register", a.register).Methods(http.MethodPost)
	router.HandleFunc("/auth/token", a.token).Methods(http.MethodPost)
	router.Handle("/auth/me", a.authenticate(http.HandlerFunc(a.me))).Methods(http.MethodGet)

	// Registered before the /chat subrouter so the bearer check doesn't apply
	router.Handle("/chat/ws/{room_id}", live).Methods(http.MethodGet)

	chat := router.PathPrefix("/chat").Subrouter()
	chat.Use(a.authenticate)
	chat.HandleFunc("/messages/{room_id}", a.messages).Methods(http.MethodGet)
	chat.HandleFunc("/messages/{message_id:[0-9]+}", a.deleteMessage).Methods(http.MethodDelete)
	chat.HandleFunc("/search/{room_id}", a.search).Methods(http.MethodGet)

	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(a.authenticate, a.requireAdmin)
	admin.HandleFunc("/users", a.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{user_id}", a.getUser).Methods(http.MethodGet)
	admin.HandleFunc("/messages/{message_id}", a.deleteMessage).Methods(http.MethodDelete)

	return a.accessLog(a.cors(router))
}

func (a *API) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Chat Application API",
		"service":   serviceName,
		"version":   serviceVersion,
		"websocket": "/chat/ws/{room_id}?token=<access_token>",
	})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
