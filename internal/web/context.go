package web

import (
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/relief/internal/core"
)

// Headers set by the upstream authenticator.
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// requestMetadata adds the client IP and User-Agent to the request context
// for audit events.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithClientIP(r.Context(), clientIP(r))
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already resolved.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// actorFromRequest reads the caller identity. A request without a role is an
// anonymous user.
func actorFromRequest(r *http.Request) core.Actor {
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(headerActorRole)))
	if role == "" {
		role = core.RoleUser
	}
	return core.Actor{
		ID:   strings.TrimSpace(r.Header.Get(headerActorID)),
		Role: role,
	}
}
