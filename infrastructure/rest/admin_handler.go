package rest

import (
	"chat-rooms/domain/chat"
	"net/http"

	"github.com/gorilla/mux"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultAdminLimit)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	users, err := a.chat.ListUsers(r.Context(), skip, limit)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponses(users))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["user_id"], "user_id")
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	user, err := a.chat.GetUser(r.Context(), chat.UserID(id))
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
