package rest

import (
	"chat-rooms/auth"
	"chat-rooms/errors"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

const maxBodySize = 1 << 16

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(a.log, w, r, fmt.Errorf("%w: %v", errors.ErrInvalidRegistration, err))
		return
	}
	user, err := a.auth.Register(r.Context(), auth.RegisterRequest{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	a.log.Info("User registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// token accepts the OAuth2 password form as well as a JSON body.
func (a *API) token(w http.ResponseWriter, r *http.Request) {
	var body tokenRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			writeError(a.log, w, r, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err))
			return
		}
		body.Username, body.Password = r.PostForm.Get("username"), r.PostForm.Get("password")
	default:
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(a.log, w, r, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err))
			return
		}
	}

	token, err := a.auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token.String(), TokenType: "bearer"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	user, err := a.chat.GetUser(r.Context(), identity.ID)
	if err != nil {
		writeError(a.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
