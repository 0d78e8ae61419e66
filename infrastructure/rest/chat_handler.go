package rest

import (
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

// messages serves a page of a room, newest first. cursor is an exclusive
// upper bound on message ids.
func (a *API) messages(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	cmd := chat.GetMessageCommand{Room: chat.RoomID(mux.Vars(r)["room_id"]), Skip: skip, Limit: limit}
	// cursor=0 is a real bound, not "no cursor": no id is below it so the
	// page is empty. Omit the parameter to get the newest page.
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(a.log, w, r, fmt.Errorf("%w: cursor must be a message id", errors.ErrInvalidQuery))
			return
		}
		cmd.Cursor = lo.ToPtr(chat.MessageID(cursor))
	}

	messages, err := a.chat.GetMessages(r.Context(), cmd)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

// deleteMessage serves both the author route and the admin route. The admin
// route is guarded upstream, the service decides for the author route.
func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["message_id"], "message_id")
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	identity, _ := identityFrom(r.Context())
	if err := a.chat.DeleteMessage(r.Context(), identity, chat.MessageID(id)); err != nil {
		writeError(a.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Message: "Message deleted successfully"})
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	messages, err := a.chat.Search(r.Context(), chat.RoomID(mux.Vars(r)["room_id"]), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(messages))
}
