package rest

import (
	"bufio"
	"chat-rooms/domain/chat"
	"chat-rooms/errors"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
)

type identityKey struct{}

func withIdentity(ctx context.Context, identity chat.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// identityFrom returns the caller set by authenticate.
func identityFrom(ctx context.Context) (chat.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(chat.Identity)
	return identity, ok
}

// authenticate resolves the bearer token of the Authorization header.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(a.log, w, r, fmt.Errorf("%w: missing bearer token", errors.ErrUnauthenticated))
			return
		}
		identity, err := a.gate.Authenticate(r.Context(), header)
		if err != nil {
			writeError(a.log, w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// requireAdmin must run after authenticate.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok {
			writeError(a.log, w, r, errors.ErrUnauthenticated)
			return
		}
		if !identity.Role.Elevated() {
			writeError(a.log, w, r, fmt.Errorf("%w: admin role required", errors.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and tags responses for the allowed origins.
// An empty list allows every origin.
func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(a.origins) == 0 || lo.Contains(a.origins, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder keeps the status for the access log. It stays hijackable
// so websocket upgrades go through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijack not supported")
	}
	s.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		a.log.Debug("HTTP request",
			"method", r.Method, "path", r.URL.Path,
			"status", recorder.status, "duration", time.Since(start))
	})
}
