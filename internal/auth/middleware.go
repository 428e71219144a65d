package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bassamhamid/grammarbot/internal/api"
)

// AdminToken guards routes with a static bearer token.
// An empty token disables the guarded routes entirely.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				api.HandleError(w, api.ErrAdminDisabled)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				slog.Warn("auth: rejected admin token", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
